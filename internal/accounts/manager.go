// Package accounts is the public surface of the key management core: a
// thin composition of the keystore (lifecycle) and the unlock manager
// (signing authorization). It holds no state of its own.
package accounts

import (
	"log/slog"
	"time"

	"signet-wallet/go-keystore/internal/bootstrap/storeconfig"
	"signet-wallet/go-keystore/internal/keystore"
	"signet-wallet/go-keystore/internal/platform/ratelimiter"
	"signet-wallet/go-keystore/internal/unlock"
	"signet-wallet/go-keystore/pkg/models"
)

type Manager struct {
	store  *keystore.Store
	unlock *unlock.Manager
}

// NewManager builds an independent manager instance over cfg. Multiple
// managers never share unlock state, which keeps tests and embedded uses
// isolated.
func NewManager(cfg storeconfig.Config, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	store, err := keystore.NewStore(cfg.Dir, cfg.Params, log)
	if err != nil {
		return nil, err
	}
	limiter := ratelimiter.New(cfg.AttemptsPerMinute, cfg.AttemptBurst, 0)
	return &Manager{
		store:  store,
		unlock: unlock.NewManager(store, limiter, log),
	}, nil
}

func (m *Manager) Create(passphrase string) (models.Account, error) {
	return m.store.Create(passphrase)
}

func (m *Manager) Delete(acc models.Account, passphrase string) error {
	m.unlock.Lock(acc.Address)
	return m.store.Delete(acc, passphrase)
}

func (m *Manager) UpdatePassphrase(acc models.Account, oldPassphrase, newPassphrase string) error {
	return m.store.UpdatePassphrase(acc, oldPassphrase, newPassphrase)
}

func (m *Manager) Export(acc models.Account, passphrase, exportPassphrase string) ([]byte, error) {
	return m.store.Export(acc, passphrase, exportPassphrase)
}

func (m *Manager) Import(raw []byte, passphrase, newPassphrase string) (models.Account, error) {
	return m.store.Import(raw, passphrase, newPassphrase)
}

func (m *Manager) ImportFromMnemonic(mnemonic, newPassphrase string) (models.Account, error) {
	return m.store.ImportFromMnemonic(mnemonic, newPassphrase)
}

func (m *Manager) Accounts() ([]models.Account, error) {
	return m.store.Accounts()
}

func (m *Manager) Contains(addr models.Address) bool {
	return m.store.Contains(addr)
}

func (m *Manager) Unlock(acc models.Account, passphrase string, d time.Duration) error {
	return m.unlock.Unlock(acc, passphrase, d)
}

func (m *Manager) Lock(addr models.Address) {
	m.unlock.Lock(addr)
}

func (m *Manager) Unlocked(addr models.Address) bool {
	return m.unlock.Unlocked(addr)
}

func (m *Manager) Sign(addr models.Address, digest []byte) ([]byte, error) {
	return m.unlock.Sign(addr, digest)
}

func (m *Manager) SignWithPassphrase(acc models.Account, passphrase string, digest []byte) ([]byte, error) {
	return m.unlock.SignWithPassphrase(acc, passphrase, digest)
}

// Close locks all unlocked accounts and zeroes cached key material.
func (m *Manager) Close() {
	m.unlock.Close()
}
