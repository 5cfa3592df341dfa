package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// ErrSignatureMalformed is returned when a signature cannot be parsed or no
// public key can be recovered from it.
var ErrSignatureMalformed = errors.New("malformed signature")

// personalMessagePrefix is the EIP-191 prefix for personal_sign payloads.
const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// RecoverSigner recovers the EVM address that signed message with
// personal_sign (EIP-191) semantics. sig must be the 65-byte r||s||v form
// produced by wallets, with v in {0,1} or {27,28}. The returned address is
// lowercase 0x-prefixed hex. Malformed input yields ErrSignatureMalformed,
// never a panic.
func RecoverSigner(message string, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: want 65 bytes, got %d", ErrSignatureMalformed, len(sig))
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", fmt.Errorf("%w: recovery id %d", ErrSignatureMalformed, sig[64])
	}

	// decred's compact form leads with the recovery header byte.
	compact := make([]byte, 65)
	compact[0] = v + 27
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])

	digest := personalMessageDigest(message)
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignatureMalformed, err)
	}
	return PubKeyToAddress(pub.SerializeUncompressed()), nil
}

// PubKeyToAddress derives the EVM address from an uncompressed 65-byte
// secp256k1 public key: the last 20 bytes of the Keccak-256 of the key body.
func PubKeyToAddress(uncompressed []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:]) // drop the 0x04 point marker
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}

// personalMessageDigest returns keccak256(prefix || len(message) || message).
func personalMessageDigest(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%s%d%s", personalMessagePrefix, len(message), message)
	return h.Sum(nil)
}

// AddressesEqual compares two EVM addresses ignoring checksum casing.
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
