// Package challenge issues and consumes single-use, time-bound wallet
// authentication challenges. The broker exclusively owns challenge lifetime:
// entries are created by Issue, removed by Consume or the sweeper, and never
// touched by any other component.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"credential-control-plane/backend/internal/security"
)

// DefaultTTL is the challenge lifetime. Expiry is enforced per-request in
// Consume; the sweeper only bounds memory.
const DefaultTTL = 5 * time.Minute

// Sentinel errors for challenge consumption, one per distinct outcome.
var (
	// ErrInvalidInput is returned when role, identity, or wallet is empty.
	ErrInvalidInput = errors.New("role, identity, and wallet address are required")
	// ErrNotFound is returned when no live challenge exists for the key:
	// never issued, already consumed, evicted, or superseded by a later issue.
	ErrNotFound = errors.New("no challenge found for this identity and wallet")
	// ErrMessageMismatch is returned when the presented message differs from
	// the stored one. The live challenge is kept: a stale client must not be
	// able to burn it.
	ErrMessageMismatch = errors.New("presented message does not match the issued challenge")
	// ErrExpired is returned when the challenge outlived its ttl. The entry is
	// deleted on this path.
	ErrExpired = errors.New("challenge has expired")
	// ErrSignatureInvalid is returned when recovery fails or the recovered
	// address is not the claimed wallet. The entry is deleted on this path.
	ErrSignatureInvalid = errors.New("signature does not match the claimed wallet address")
)

// VerifiedIdentity is the tuple handed to the session collaborator after a
// successful consume. No token or session is minted here.
type VerifiedIdentity struct {
	Role          string
	Identity      string
	WalletAddress string
}

// RecoverFunc recovers the signing address from a message and signature.
// security.RecoverSigner is the production implementation.
type RecoverFunc func(message string, signature []byte) (string, error)

type entry struct {
	message  string
	nonce    string
	issuedAt time.Time
}

// Broker stores at most one live challenge per (role, identity, wallet) key.
// Issuing for an existing key supersedes the prior challenge, which becomes
// permanently unconsumable. All map access happens under one mutex so issue,
// consume, and sweep never interleave into a torn read.
type Broker struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	recoverF RecoverFunc
	nowF     func() time.Time
}

// NewBroker returns a Broker with the given ttl (DefaultTTL if <= 0) and
// signature recovery function.
func NewBroker(ttl time.Duration, recoverFn RecoverFunc) *Broker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if recoverFn == nil {
		recoverFn = security.RecoverSigner
	}
	return &Broker{
		entries:  make(map[string]entry),
		ttl:      ttl,
		recoverF: recoverFn,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Issue builds a fresh challenge message for the (role, identity, wallet)
// tuple and stores it, replacing any prior unconsumed challenge for the same
// key (last-issued-wins). The returned message is the exact byte sequence the
// wallet must sign and the client must echo back to Consume.
func (b *Broker) Issue(role, identity, walletAddress string) (string, error) {
	role = strings.TrimSpace(role)
	identity = strings.TrimSpace(identity)
	walletAddress = strings.TrimSpace(walletAddress)
	if role == "" || identity == "" || walletAddress == "" {
		return "", ErrInvalidInput
	}

	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	now := b.nowF()
	message := buildMessage(role, identity, walletAddress, nonce, now)

	b.mu.Lock()
	b.entries[compositeKey(role, identity, walletAddress)] = entry{
		message:  message,
		nonce:    nonce,
		issuedAt: now,
	}
	b.mu.Unlock()
	return message, nil
}

// Consume looks up the live challenge for the key and verifies the presented
// message and signature. Terminal outcomes (success, expiry, signature
// failure) delete the entry, so a challenge can never be retried to success;
// a message mismatch leaves the live challenge in place.
func (b *Broker) Consume(role, identity, walletAddress, presentedMessage string, signature []byte) (*VerifiedIdentity, error) {
	role = strings.TrimSpace(role)
	identity = strings.TrimSpace(identity)
	walletAddress = strings.TrimSpace(walletAddress)
	if role == "" || identity == "" || walletAddress == "" {
		return nil, ErrInvalidInput
	}
	key := compositeKey(role, identity, walletAddress)

	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		b.mu.Unlock()
		return nil, ErrNotFound
	}
	if e.message != presentedMessage {
		b.mu.Unlock()
		return nil, ErrMessageMismatch
	}
	now := b.nowF()
	if now.Sub(e.issuedAt) > b.ttl {
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, ErrExpired
	}
	// Single-use from here on: the entry is gone whether or not the
	// signature checks out, so a bad signature cannot be retried.
	delete(b.entries, key)
	b.mu.Unlock()

	signer, err := b.recoverF(e.message, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !security.AddressesEqual(signer, walletAddress) {
		return nil, ErrSignatureInvalid
	}
	return &VerifiedIdentity{
		Role:          role,
		Identity:      identity,
		WalletAddress: strings.ToLower(walletAddress),
	}, nil
}

// EvictExpired removes every entry older than the ttl and returns how many
// were dropped. Called by the sweeper; Consume does not depend on it.
func (b *Broker) EvictExpired() int {
	now := b.nowF()
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := 0
	for key, e := range b.entries {
		if now.Sub(e.issuedAt) > b.ttl {
			delete(b.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live challenges.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// compositeKey lowercases all three parts so lookups are case-insensitive.
func compositeKey(role, identity, walletAddress string) string {
	return strings.ToLower(role) + "|" + strings.ToLower(identity) + "|" + strings.ToLower(walletAddress)
}

// buildMessage renders the fixed challenge template. The field order is a wire
// contract: the stored copy is byte-compared against what the client signed,
// so any change here breaks every in-flight challenge.
func buildMessage(role, identity, walletAddress, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(
		"Sign this message to verify wallet ownership.\nRole: %s\nIdentity: %s\nWallet: %s\nNonce: %s\nIssued At: %s",
		role, identity, strings.ToLower(walletAddress), nonce, issuedAt.UTC().Format(time.RFC3339),
	)
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
