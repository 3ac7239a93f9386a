package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"signet-wallet/go-keystore/internal/keyfile"
	"signet-wallet/go-keystore/internal/testutil/fsperm"
	"signet-wallet/go-keystore/pkg/models"
)

var testParams = keyfile.Params{N: 8, P: 1}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "keystore"), testParams, nil)
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	return s
}

func TestCreateAndList(t *testing.T) {
	s := newTestStore(t)
	fsperm.AssertPrivateDirPerm(t, s.Dir())

	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !acc.Managed() {
		t.Fatalf("created account must be store-managed")
	}
	if !s.Contains(acc.Address) {
		t.Fatalf("store does not contain created account")
	}

	accounts, err := s.Accounts()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Address != acc.Address {
		t.Fatalf("unexpected listing: %+v", accounts)
	}
}

func TestKeyFileNamingAndPerm(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one key file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "UTC--") || !strings.HasSuffix(name, "--"+acc.Address.String()) {
		t.Fatalf("unexpected key file name: %s", name)
	}
	fsperm.AssertPrivateFilePerm(t, filepath.Join(s.Dir(), name))
}

func TestDeleteRequiresPassphrase(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := s.Delete(acc, "wrong"); !errors.Is(err, keyfile.ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
	if !s.Contains(acc.Address) {
		t.Fatalf("failed delete must not remove the key file")
	}

	if err := s.Delete(acc, "pw1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if s.Contains(acc.Address) {
		t.Fatalf("account still present after delete")
	}
	if err := s.Delete(acc, "pw1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestUpdatePassphraseInvalidatesOld(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("old")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := s.UpdatePassphrase(acc, "old", "new"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := s.DecryptKey(acc, "old"); !errors.Is(err, keyfile.ErrInvalidPassphrase) {
		t.Fatalf("old passphrase still valid: %v", err)
	}
	priv, err := s.DecryptKey(acc, "new")
	if err != nil {
		t.Fatalf("new passphrase rejected: %v", err)
	}
	priv.Key.Zero()

	if err := s.UpdatePassphrase(acc, "old", "newer"); !errors.Is(err, keyfile.ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase for stale old passphrase, got %v", err)
	}
}

func TestExportImportKeepsAddress(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	exported, err := s.Export(acc, "pw1", "pw2")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	// The stored original must still open under its own passphrase.
	priv, err := s.DecryptKey(acc, "pw1")
	if err != nil {
		t.Fatalf("original damaged by export: %v", err)
	}
	priv.Key.Zero()

	if err := s.Delete(acc, "pw1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	imported, err := s.Import(exported, "pw2", "pw3")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if imported.Address != acc.Address {
		t.Fatalf("import changed the address: %s != %s", imported.Address, acc.Address)
	}
	priv, err = s.DecryptKey(imported, "pw3")
	if err != nil {
		t.Fatalf("imported key rejected its passphrase: %v", err)
	}
	priv.Key.Zero()
}

func TestImportRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	exported, err := s.Export(acc, "pw1", "pw2")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := s.Import(exported, "pw2", "pw3"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestImportFromMnemonic(t *testing.T) {
	const mnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

	s1 := newTestStore(t)
	acc1, err := s1.ImportFromMnemonic(mnemonic, "pw")
	if err != nil {
		t.Fatalf("mnemonic import failed: %v", err)
	}

	// The same phrase must land on the same address in any store.
	s2 := newTestStore(t)
	acc2, err := s2.ImportFromMnemonic(mnemonic, "other")
	if err != nil {
		t.Fatalf("second mnemonic import failed: %v", err)
	}
	if acc1.Address != acc2.Address {
		t.Fatalf("mnemonic derivation not deterministic")
	}

	if _, err := s1.ImportFromMnemonic(mnemonic, "pw"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if _, err := s1.ImportFromMnemonic("not a phrase", "pw"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}

func TestCustomPathAccountsRejected(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	external := models.Account{Address: acc.Address, Path: "/elsewhere/key.json"}

	if err := s.Delete(external, "pw1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("delete accepted custom-path account: %v", err)
	}
	if err := s.UpdatePassphrase(external, "pw1", "pw2"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("update accepted custom-path account: %v", err)
	}
	if _, err := s.Export(external, "pw1", "pw2"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("export accepted custom-path account: %v", err)
	}
	if _, err := s.DecryptKey(external, "pw1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("decrypt accepted custom-path account: %v", err)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.UpdatePassphrase(acc, "pw1", "pw2"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected one key file, got %d", len(entries))
	}
}

func TestForeignKeyFilePickedUpByScan(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Create("pw1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	exported, err := s.Export(acc, "pw1", "pw1")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if err := s.Delete(acc, "pw1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// A conformant file dropped in by another tool, without our naming.
	if err := os.WriteFile(filepath.Join(s.Dir(), "foreign.json"), exported, 0o600); err != nil {
		t.Fatalf("write foreign file failed: %v", err)
	}
	if !s.Contains(acc.Address) {
		t.Fatalf("foreign key file not found by address")
	}
	priv, err := s.DecryptKey(models.Account{Address: acc.Address}, "pw1")
	if err != nil {
		t.Fatalf("decrypt of foreign file failed: %v", err)
	}
	priv.Key.Zero()
}

func TestConcurrentCreatesDistinctAccounts(t *testing.T) {
	s := newTestStore(t)
	const n = 8

	var wg sync.WaitGroup
	addrs := make([]models.Address, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := s.Create("pw")
			addrs[i], errs[i] = acc.Address, err
		}(i)
	}
	wg.Wait()

	seen := make(map[models.Address]struct{}, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("create %d failed: %v", i, errs[i])
		}
		if _, dup := seen[addrs[i]]; dup {
			t.Fatalf("duplicate address from concurrent creates")
		}
		seen[addrs[i]] = struct{}{}
	}
	accounts, err := s.Accounts()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(accounts) != n {
		t.Fatalf("expected %d accounts, got %d", n, len(accounts))
	}
}
