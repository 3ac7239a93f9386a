package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signet-wallet/go-keystore/internal/keyfile"
	"signet-wallet/go-keystore/pkg/models"
)

// Key files are named UTC--<creation time>--<address> so names sort by
// creation order and the address is recoverable without opening the file.
const keyFileTimeLayout = "2006-01-02T15-04-05.000000000Z"

func keyFilePath(dir string, addr models.Address) string {
	name := fmt.Sprintf("UTC--%s--%s", time.Now().UTC().Format(keyFileTimeLayout), addr.String())
	return filepath.Join(dir, name)
}

// findKeyFile locates the key file for addr, preferring the filename
// convention but falling back to opening conformant files dropped into the
// directory by other tools.
func findKeyFile(dir string, addr models.Address) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan keystore dir: %w", err)
	}
	suffix := "--" + addr.String()
	for _, entry := range entries {
		if entry.IsDir() || skipFileName(entry.Name()) {
			continue
		}
		if strings.HasSuffix(entry.Name(), suffix) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	for _, entry := range entries {
		if entry.IsDir() || skipFileName(entry.Name()) || strings.HasPrefix(entry.Name(), "UTC--") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		stored, err := keyfile.StoredAddress(raw)
		if err == nil && stored == addr {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
}

// scanDir maps every readable key file in dir to its address.
func scanDir(dir string) (map[models.Address]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan keystore dir: %w", err)
	}
	out := make(map[models.Address]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || skipFileName(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if addr, ok := addressFromFileName(entry.Name()); ok {
			out[addr] = path
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if addr, err := keyfile.StoredAddress(raw); err == nil {
			out[addr] = path
		}
	}
	return out, nil
}

func addressFromFileName(name string) (models.Address, bool) {
	if !strings.HasPrefix(name, "UTC--") {
		return models.Address{}, false
	}
	idx := strings.LastIndex(name, "--")
	if idx < 0 {
		return models.Address{}, false
	}
	addr, err := models.ParseAddress(name[idx+2:])
	if err != nil {
		return models.Address{}, false
	}
	return addr, true
}

func skipFileName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}

// writeAtomic writes data to a temp file in the target directory, then
// renames into place. A crash mid-write never leaves a partial key file
// visible under the final name.
func writeAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp")
	if err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
