// Package keystore manages a directory of passphrase-encrypted key files,
// one file per account. The directory is private to the owning process;
// every operation takes the passphrase explicitly and drops all decrypted
// material before returning.
//
// There is no recovery path for a forgotten passphrase. Brute-forcing the
// key derivation is infeasible by construction, so losing the passphrase
// means losing the key permanently.
package keystore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"

	"signet-wallet/go-keystore/internal/keycrypto"
	"signet-wallet/go-keystore/internal/keyfile"
	"signet-wallet/go-keystore/internal/platform/metrics"
	"signet-wallet/go-keystore/pkg/models"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
)

// Store owns one keystore directory.
type Store struct {
	dir    string
	params keyfile.Params
	log    *slog.Logger

	mu     sync.Mutex
	byAddr map[models.Address]*sync.Mutex
}

// NewStore opens (creating if needed) the keystore directory at dir. All
// keys written by this store are encrypted under params; files read back
// honor whatever params they were written with.
func NewStore(dir string, params keyfile.Params, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("open keystore dir: %w", err)
	}
	return &Store{
		dir:    dir,
		params: params,
		log:    log,
		byAddr: make(map[models.Address]*sync.Mutex),
	}, nil
}

// Dir returns the keystore directory path.
func (s *Store) Dir() string { return s.dir }

// Create generates a fresh key pair, persists it encrypted under
// passphrase and returns the new account.
func (s *Store) Create(passphrase string) (acc models.Account, err error) {
	defer func() { metrics.ObserveOp("create", err) }()

	priv, err := keycrypto.GenerateKey()
	if err != nil {
		return models.Account{}, err
	}
	defer keycrypto.ZeroKey(priv)

	addr := keycrypto.PubkeyToAddress(priv.PubKey())
	unlock := s.lockAddr(addr)
	defer unlock()

	if err := s.persistKey(priv, addr, passphrase); err != nil {
		return models.Account{}, err
	}
	s.log.Info("keystore account created", "address", addr.Hex())
	return models.Account{Address: addr}, nil
}

// Delete verifies ownership by decrypting with passphrase, then removes
// the key file. The decrypt is a protective check, not a cryptographic
// necessity.
func (s *Store) Delete(acc models.Account, passphrase string) (err error) {
	defer func() { metrics.ObserveOp("delete", err) }()

	if !acc.Managed() {
		return fmt.Errorf("%w: custom-path account", ErrAccountNotFound)
	}
	unlock := s.lockAddr(acc.Address)
	defer unlock()

	path, raw, err := s.readKeyFile(acc.Address)
	if err != nil {
		return err
	}
	priv, err := keyfile.Decrypt(raw, passphrase)
	if err != nil {
		return err
	}
	keycrypto.ZeroKey(priv)

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove key file: %w", err)
	}
	s.log.Info("keystore account deleted", "address", acc.Address.Hex())
	return nil
}

// UpdatePassphrase re-encrypts the account's key under newPassphrase with
// a fresh salt and IV, replacing the key file atomically. The old
// passphrase stops working the moment this returns nil.
func (s *Store) UpdatePassphrase(acc models.Account, oldPassphrase, newPassphrase string) (err error) {
	defer func() { metrics.ObserveOp("update_passphrase", err) }()

	if !acc.Managed() {
		return fmt.Errorf("%w: custom-path account", ErrAccountNotFound)
	}
	unlock := s.lockAddr(acc.Address)
	defer unlock()

	path, raw, err := s.readKeyFile(acc.Address)
	if err != nil {
		return err
	}
	priv, err := keyfile.Decrypt(raw, oldPassphrase)
	if err != nil {
		return err
	}
	defer keycrypto.ZeroKey(priv)

	reencrypted, err := keyfile.Encrypt(priv, newPassphrase, s.params)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, reencrypted); err != nil {
		return err
	}
	s.log.Info("keystore passphrase updated", "address", acc.Address.Hex())
	return nil
}

// Export decrypts the account's key with passphrase and returns it
// re-encrypted under exportPassphrase with independent fresh salt, IV and
// params. The stored file is untouched.
func (s *Store) Export(acc models.Account, passphrase, exportPassphrase string) (out []byte, err error) {
	defer func() { metrics.ObserveOp("export", err) }()

	if !acc.Managed() {
		return nil, fmt.Errorf("%w: custom-path account", ErrAccountNotFound)
	}
	unlock := s.lockAddr(acc.Address)
	defer unlock()

	_, raw, err := s.readKeyFile(acc.Address)
	if err != nil {
		return nil, err
	}
	priv, err := keyfile.Decrypt(raw, passphrase)
	if err != nil {
		return nil, err
	}
	defer keycrypto.ZeroKey(priv)

	return keyfile.Encrypt(priv, exportPassphrase, s.params)
}

// Import decrypts an exported key file with passphrase, re-encrypts it
// under newPassphrase and persists it. An address already present in the
// store is rejected rather than overwritten.
func (s *Store) Import(raw []byte, passphrase, newPassphrase string) (acc models.Account, err error) {
	defer func() { metrics.ObserveOp("import", err) }()

	priv, err := keyfile.Decrypt(raw, passphrase)
	if err != nil {
		return models.Account{}, err
	}
	defer keycrypto.ZeroKey(priv)

	return s.importKey(priv, newPassphrase)
}

// ImportFromMnemonic derives a key from a BIP-39 recovery phrase and
// stores it encrypted under newPassphrase.
func (s *Store) ImportFromMnemonic(mnemonic, newPassphrase string) (acc models.Account, err error) {
	defer func() { metrics.ObserveOp("import_mnemonic", err) }()

	if !bip39.IsMnemonicValid(mnemonic) {
		return models.Account{}, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer keycrypto.ZeroBytes(seed)

	scalar := blake2b.Sum256(seed)
	defer keycrypto.ZeroBytes(scalar[:])

	priv, err := keycrypto.ParsePrivateKey(scalar[:])
	if err != nil {
		return models.Account{}, err
	}
	defer keycrypto.ZeroKey(priv)

	return s.importKey(priv, newPassphrase)
}

func (s *Store) importKey(priv *btcec.PrivateKey, newPassphrase string) (models.Account, error) {
	addr := keycrypto.PubkeyToAddress(priv.PubKey())
	unlock := s.lockAddr(addr)
	defer unlock()

	if s.containsLocked(addr) {
		return models.Account{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, addr.Hex())
	}
	if err := s.persistKey(priv, addr, newPassphrase); err != nil {
		return models.Account{}, err
	}
	s.log.Info("keystore account imported", "address", addr.Hex())
	return models.Account{Address: addr}, nil
}

// DecryptKey decrypts the account's private key with passphrase. The
// caller owns the returned key and must zero it when done; this is the
// decryption entry point for the unlock cache.
func (s *Store) DecryptKey(acc models.Account, passphrase string) (*btcec.PrivateKey, error) {
	if !acc.Managed() {
		return nil, fmt.Errorf("%w: custom-path account", ErrAccountNotFound)
	}
	unlock := s.lockAddr(acc.Address)
	defer unlock()

	_, raw, err := s.readKeyFile(acc.Address)
	if err != nil {
		return nil, err
	}
	return keyfile.Decrypt(raw, passphrase)
}

// Accounts lists the store's accounts sorted by address.
func (s *Store) Accounts() ([]models.Account, error) {
	addrs, err := scanDir(s.dir)
	if err != nil {
		return nil, err
	}
	accounts := make([]models.Account, 0, len(addrs))
	for addr := range addrs {
		accounts = append(accounts, models.Account{Address: addr})
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Address.String() < accounts[j].Address.String()
	})
	return accounts, nil
}

// Contains reports whether a key file for addr exists in the store.
func (s *Store) Contains(addr models.Address) bool {
	unlock := s.lockAddr(addr)
	defer unlock()
	return s.containsLocked(addr)
}

func (s *Store) containsLocked(addr models.Address) bool {
	_, err := findKeyFile(s.dir, addr)
	return err == nil
}

func (s *Store) persistKey(priv *btcec.PrivateKey, addr models.Address, passphrase string) error {
	raw, err := keyfile.Encrypt(priv, passphrase, s.params)
	if err != nil {
		return err
	}
	return writeAtomic(keyFilePath(s.dir, addr), raw)
}

func (s *Store) readKeyFile(addr models.Address) (string, []byte, error) {
	path, err := findKeyFile(s.dir, addr)
	if err != nil {
		return "", nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read key file: %w", err)
	}
	return path, raw, nil
}

// lockAddr serializes writers per address. The returned func releases the
// address lock.
func (s *Store) lockAddr(addr models.Address) func() {
	s.mu.Lock()
	m, ok := s.byAddr[addr]
	if !ok {
		m = &sync.Mutex{}
		s.byAddr[addr] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
