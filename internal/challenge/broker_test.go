package challenge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"credential-control-plane/backend/internal/security"
)

// testWallet is a secp256k1 key pair that signs challenge messages the way a
// wallet's personal_sign does.
type testWallet struct {
	priv    *secp256k1.PrivateKey
	address string
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	return &testWallet{
		priv:    priv,
		address: security.PubKeyToAddress(priv.PubKey().SerializeUncompressed()),
	}
}

func (w *testWallet) sign(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(message), message)
	compact := ecdsa.SignCompact(w.priv, h.Sum(nil), false)
	sig := make([]byte, 65)
	copy(sig[0:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0]
	return sig
}

// fixedClock drives a broker's notion of now for deterministic expiry tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBroker(clock *fixedClock) *Broker {
	b := NewBroker(DefaultTTL, nil)
	if clock != nil {
		b.nowF = clock.Now
	}
	return b
}

func TestBroker_IssueAndConsume(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)

	msg, err := b.Issue("employee", "emp@acme.test", w.address)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for _, want := range []string{"Role: employee", "Identity: emp@acme.test", "Wallet: " + w.address, "Nonce: ", "Issued At: "} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	id, err := b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg))
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if id.Role != "employee" || id.Identity != "emp@acme.test" || id.WalletAddress != w.address {
		t.Errorf("identity = %+v", id)
	}
}

func TestBroker_Issue_ValidatesInput(t *testing.T) {
	b := newTestBroker(nil)
	for _, tt := range [][3]string{
		{"", "id", "0xabc"},
		{"employee", "", "0xabc"},
		{"employee", "id", ""},
	} {
		if _, err := b.Issue(tt[0], tt[1], tt[2]); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Issue(%q,%q,%q): err = %v, want ErrInvalidInput", tt[0], tt[1], tt[2], err)
		}
	}
}

func TestBroker_Consume_SingleUse(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)

	msg, _ := b.Issue("employee", "emp@acme.test", w.address)
	sig := w.sign(msg)

	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, sig); err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, sig); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Consume: err = %v, want ErrNotFound", err)
	}
}

func TestBroker_Consume_BadSignatureBurnsChallenge(t *testing.T) {
	w := newTestWallet(t)
	other := newTestWallet(t)
	b := newTestBroker(nil)

	msg, _ := b.Issue("employee", "emp@acme.test", w.address)

	// Signed by the wrong key: rejected, and the challenge is consumed so the
	// attacker cannot keep retrying against it.
	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, other.sign(msg)); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg)); !errors.Is(err, ErrNotFound) {
		t.Errorf("retry after signature failure: err = %v, want ErrNotFound", err)
	}
}

func TestBroker_Consume_MalformedSignature(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)
	msg, _ := b.Issue("employee", "emp@acme.test", w.address)

	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, []byte{1, 2, 3}); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("err = %v, want ErrSignatureInvalid", err)
	}
}

func TestBroker_Supersession(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)

	first, _ := b.Issue("employee", "emp@acme.test", w.address)
	second, _ := b.Issue("employee", "emp@acme.test", w.address)
	if first == second {
		t.Fatal("reissued challenge should carry a fresh nonce")
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (last-issued-wins)", b.Len())
	}

	// The superseded message no longer matches and must not consume the live
	// challenge.
	if _, err := b.Consume("employee", "emp@acme.test", w.address, first, w.sign(first)); !errors.Is(err, ErrMessageMismatch) {
		t.Fatalf("stale message: err = %v, want ErrMessageMismatch", err)
	}
	if _, err := b.Consume("employee", "emp@acme.test", w.address, second, w.sign(second)); err != nil {
		t.Errorf("live message after stale attempt: %v", err)
	}
}

func TestBroker_Consume_MessageMismatchKeepsChallenge(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)
	msg, _ := b.Issue("employee", "emp@acme.test", w.address)

	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg+" ", w.sign(msg)); !errors.Is(err, ErrMessageMismatch) {
		t.Fatalf("err = %v, want ErrMessageMismatch", err)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1 (mismatch must not consume)", b.Len())
	}
}

func TestBroker_CompositeKeyIsCaseInsensitive(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)

	msg, _ := b.Issue("Employee", "Emp@Acme.Test", "0x"+strings.ToUpper(w.address[2:]))
	id, err := b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg))
	if err != nil {
		t.Fatalf("Consume with different casing: %v", err)
	}
	if id.WalletAddress != w.address {
		t.Errorf("wallet = %s, want lowercase %s", id.WalletAddress, w.address)
	}
}

func TestBroker_ExpiryBoundary(t *testing.T) {
	w := newTestWallet(t)
	clock := newFixedClock()
	b := newTestBroker(clock)

	msg, _ := b.Issue("employee", "emp@acme.test", w.address)
	clock.Advance(DefaultTTL - time.Second)
	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg)); err != nil {
		t.Fatalf("Consume at ttl-1s: %v", err)
	}

	msg, _ = b.Issue("employee", "emp@acme.test", w.address)
	clock.Advance(DefaultTTL + time.Second)
	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg)); !errors.Is(err, ErrExpired) {
		t.Fatalf("Consume at ttl+1s: err = %v, want ErrExpired", err)
	}
	// The expired entry is gone without any sweeper having run.
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0 after expiry-detected consumption", b.Len())
	}
	if _, err := b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg)); !errors.Is(err, ErrNotFound) {
		t.Errorf("repeat expired lookup: err = %v, want ErrNotFound (no resurrection)", err)
	}
}

func TestBroker_Consume_NeverIssued(t *testing.T) {
	w := newTestWallet(t)
	b := newTestBroker(nil)
	if _, err := b.Consume("employee", "emp@acme.test", w.address, "msg", w.sign("msg")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBroker_ConcurrentDistinctKeys(t *testing.T) {
	b := newTestBroker(nil)
	wallets := make([]*testWallet, 8)
	messages := make([]string, 8)
	for i := range wallets {
		wallets[i] = newTestWallet(t)
		msg, err := b.Issue("employee", fmt.Sprintf("emp%d@acme.test", i), wallets[i].address)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		messages[i] = msg
	}

	var wg sync.WaitGroup
	errs := make([]error, len(wallets))
	for i := range wallets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := fmt.Sprintf("emp%d@acme.test", i)
			_, errs[i] = b.Consume("employee", identity, wallets[i].address, messages[i], wallets[i].sign(messages[i]))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("wallet %d: %v", i, err)
		}
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestBroker_ConcurrentIssueConsumeSameKey(t *testing.T) {
	// Races between issue and consume on one key must always observe a
	// coherent entry: every outcome is one of the named errors or success,
	// never a torn state. Run with -race.
	w := newTestWallet(t)
	b := newTestBroker(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := b.Issue("employee", "emp@acme.test", w.address)
			if err != nil {
				t.Errorf("Issue: %v", err)
				return
			}
			_, err = b.Consume("employee", "emp@acme.test", w.address, msg, w.sign(msg))
			switch {
			case err == nil:
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrMessageMismatch):
			default:
				t.Errorf("unexpected outcome: %v", err)
			}
		}()
	}
	wg.Wait()
}
