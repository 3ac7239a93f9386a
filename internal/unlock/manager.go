// Package unlock holds temporarily decrypted keys and serves signing
// requests against them. Keys enter the cache through Unlock, leave it
// through Lock, expiry or Close, and never leave the package.
package unlock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"signet-wallet/go-keystore/internal/keycrypto"
	"signet-wallet/go-keystore/internal/keyfile"
	"signet-wallet/go-keystore/internal/keystore"
	"signet-wallet/go-keystore/internal/platform/metrics"
	"signet-wallet/go-keystore/internal/platform/ratelimiter"
	"signet-wallet/go-keystore/pkg/models"
)

var (
	ErrAccountLocked   = errors.New("account is locked")
	ErrTooManyAttempts = errors.New("too many passphrase attempts")
)

// Manager is the authorization state machine: each address is either
// Locked (default) or Unlocked with an optional expiry.
type Manager struct {
	store   *keystore.Store
	limiter *ratelimiter.AttemptLimiter
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	unlocked map[models.Address]*unlockedKey
}

// unlockedKey is never persisted and never escapes the manager.
type unlockedKey struct {
	priv      *btcec.PrivateKey
	expiresAt time.Time // zero means no expiry
	timer     *time.Timer
}

func NewManager(store *keystore.Store, limiter *ratelimiter.AttemptLimiter, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    store,
		limiter:  limiter,
		log:      log,
		now:      time.Now,
		unlocked: make(map[models.Address]*unlockedKey),
	}
}

// newManagerWithClock injects a clock for expiry tests.
func newManagerWithClock(store *keystore.Store, limiter *ratelimiter.AttemptLimiter, log *slog.Logger, now func() time.Time) *Manager {
	m := NewManager(store, limiter, log)
	m.now = now
	return m
}

// Unlock decrypts the account's key and caches it for d. A zero d means
// no expiry. Unlocking an already-unlocked account replaces the cached
// key and its expiry; the last caller wins.
func (m *Manager) Unlock(acc models.Account, passphrase string, d time.Duration) error {
	priv, err := m.decryptThrottled(acc, passphrase)
	if err != nil {
		return err
	}

	entry := &unlockedKey{priv: priv}
	if d > 0 {
		entry.expiresAt = m.now().Add(d)
	}

	m.mu.Lock()
	if old, ok := m.unlocked[acc.Address]; ok {
		m.dropLocked(acc.Address, old)
	}
	m.unlocked[acc.Address] = entry
	if d > 0 {
		entry.timer = time.AfterFunc(d, func() { m.expire(acc.Address, entry) })
	}
	m.mu.Unlock()

	metrics.UnlockedAccounts.Inc()
	m.log.Info("account unlocked", "address", acc.Address.Hex(), "ttl", d)
	return nil
}

// Lock discards cached key material for addr. Locking an already-locked
// account is a no-op.
func (m *Manager) Lock(addr models.Address) {
	m.mu.Lock()
	entry, ok := m.unlocked[addr]
	if ok {
		m.dropLocked(addr, entry)
	}
	m.mu.Unlock()
	if ok {
		m.log.Info("account locked", "address", addr.Hex())
	}
}

// Unlocked reports whether addr currently holds a live cache entry.
func (m *Manager) Unlocked(addr models.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.unlocked[addr]
	if !ok {
		return false
	}
	if m.expiredLocked(entry) {
		m.dropLocked(addr, entry)
		return false
	}
	return true
}

// Sign produces a recoverable signature over digest with the cached key
// for addr. Fails with ErrAccountLocked when the account is locked or its
// unlock has expired; the expiry check here is authoritative regardless
// of timer scheduling.
func (m *Manager) Sign(addr models.Address, digest []byte) (sig []byte, err error) {
	defer func() { observeSign("cached", err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.unlocked[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountLocked, addr.Hex())
	}
	if m.expiredLocked(entry) {
		m.dropLocked(addr, entry)
		return nil, fmt.Errorf("%w: unlock expired for %s", ErrAccountLocked, addr.Hex())
	}
	return keycrypto.Sign(digest, entry.priv)
}

// SignWithPassphrase decrypts, signs and discards in one call, without
// consulting or touching the unlock cache. This is the only signing path
// that accepts custom-path accounts, since it never persists or caches
// anything.
func (m *Manager) SignWithPassphrase(acc models.Account, passphrase string, digest []byte) (sig []byte, err error) {
	defer func() { observeSign("passphrase", err) }()

	var priv *btcec.PrivateKey
	if acc.Managed() {
		priv, err = m.decryptThrottled(acc, passphrase)
	} else {
		priv, err = m.decryptExternal(acc, passphrase)
	}
	if err != nil {
		return nil, err
	}
	defer keycrypto.ZeroKey(priv)

	return keycrypto.Sign(digest, priv)
}

// Close locks every account, zeroing all cached key material.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, entry := range m.unlocked {
		m.dropLocked(addr, entry)
	}
}

func (m *Manager) decryptThrottled(acc models.Account, passphrase string) (*btcec.PrivateKey, error) {
	if !m.limiter.Allow(acc.Address, m.now()) {
		metrics.ThrottledAttempts.Inc()
		return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts, acc.Address.Hex())
	}
	priv, err := m.store.DecryptKey(acc, passphrase)
	if err != nil {
		if errors.Is(err, keyfile.ErrInvalidPassphrase) {
			metrics.PassphraseFailures.Inc()
		}
		return nil, err
	}
	m.limiter.Forget(acc.Address)
	return priv, nil
}

// decryptExternal reads a key file at the account's own path, bypassing
// the managed directory.
func (m *Manager) decryptExternal(acc models.Account, passphrase string) (*btcec.PrivateKey, error) {
	if !m.limiter.Allow(acc.Address, m.now()) {
		metrics.ThrottledAttempts.Inc()
		return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts, acc.Address.Hex())
	}
	raw, err := os.ReadFile(acc.Path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	priv, err := keyfile.Decrypt(raw, passphrase)
	if err != nil {
		if errors.Is(err, keyfile.ErrInvalidPassphrase) {
			metrics.PassphraseFailures.Inc()
		}
		return nil, err
	}
	if derived := keycrypto.PubkeyToAddress(priv.PubKey()); derived != acc.Address {
		keycrypto.ZeroKey(priv)
		return nil, fmt.Errorf("%w: key file at %s does not hold %s", keystore.ErrAccountNotFound, acc.Path, acc.Address.Hex())
	}
	m.limiter.Forget(acc.Address)
	return priv, nil
}

// expire is the timer callback; it only drops the exact entry it was
// armed for, so a refreshed unlock is never clobbered by a stale timer.
func (m *Manager) expire(addr models.Address, entry *unlockedKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.unlocked[addr]; ok && current == entry {
		m.dropLocked(addr, entry)
	}
}

func (m *Manager) expiredLocked(entry *unlockedKey) bool {
	return !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt)
}

// dropLocked zeroes and removes an entry. Callers hold m.mu.
func (m *Manager) dropLocked(addr models.Address, entry *unlockedKey) {
	if entry.timer != nil {
		entry.timer.Stop()
	}
	keycrypto.ZeroKey(entry.priv)
	delete(m.unlocked, addr)
	metrics.UnlockedAccounts.Dec()
}

func observeSign(path string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SignOps.WithLabelValues(path, result).Inc()
}
