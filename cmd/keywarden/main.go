package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"signet-wallet/go-keystore/internal/accounts"
	"signet-wallet/go-keystore/internal/bootstrap/storeconfig"
	"signet-wallet/go-keystore/internal/keyfile"
	"signet-wallet/go-keystore/internal/platform/privacylog"
	"signet-wallet/go-keystore/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to keywarden.yaml (optional)")
	dir := flag.String("dir", "", "Keystore directory override (optional)")
	action := flag.String("action", "list", "Action: create | list | inspect | sign")
	address := flag.String("address", "", "Account address for sign")
	keyFilePath := flag.String("file", "", "Key file path for inspect")
	digestHex := flag.String("digest", "", "32-byte digest to sign, hex encoded")
	unlockTTL := flag.Duration("unlock-ttl", 0, "Cache the key for this long after signing (0 = sign once)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("keywarden version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	log := slog.New(privacylog.WrapHandler(slog.NewTextHandler(os.Stderr, nil)))
	slog.SetDefault(log)

	cfg, err := storeconfig.LoadFromPath(*configPath)
	if err != nil {
		fatal(log, "load config", err)
	}
	if *dir != "" {
		cfg.Dir = *dir
	}

	mgr, err := accounts.NewManager(cfg, log)
	if err != nil {
		fatal(log, "open keystore", err)
	}
	defer mgr.Close()

	switch *action {
	case "create":
		runCreate(log, mgr)
	case "list":
		runList(log, mgr)
	case "inspect":
		runInspect(log, *keyFilePath)
	case "sign":
		runSign(log, mgr, *address, *digestHex, *unlockTTL)
	default:
		fatal(log, "unknown action", fmt.Errorf("%q", *action))
	}
}

func runCreate(log *slog.Logger, mgr *accounts.Manager) {
	acc, err := mgr.Create(mustPassphrase(log))
	if err != nil {
		fatal(log, "create account", err)
	}
	fmt.Println(acc.Address.Hex())
}

func runList(log *slog.Logger, mgr *accounts.Manager) {
	accs, err := mgr.Accounts()
	if err != nil {
		fatal(log, "list accounts", err)
	}
	for _, acc := range accs {
		fmt.Println(acc.Address.Hex())
	}
}

func runInspect(log *slog.Logger, path string) {
	if path == "" {
		fatal(log, "inspect", fmt.Errorf("-file is required"))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		fatal(log, "read key file", err)
	}
	meta, err := keyfile.Inspect(raw)
	if err != nil {
		fatal(log, "inspect key file", err)
	}
	fmt.Printf("address=%s id=%s scryptN=%d scryptP=%d\n", meta.Address.Hex(), meta.ID, meta.Params.N, meta.Params.P)
}

func runSign(log *slog.Logger, mgr *accounts.Manager, address, digestHex string, ttl time.Duration) {
	addr, err := models.ParseAddress(address)
	if err != nil {
		fatal(log, "parse address", err)
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		fatal(log, "parse digest", err)
	}
	acc := models.Account{Address: addr}
	pass := mustPassphrase(log)

	var sig []byte
	if ttl > 0 {
		if err := mgr.Unlock(acc, pass, ttl); err != nil {
			fatal(log, "unlock", err)
		}
		sig, err = mgr.Sign(addr, digest)
	} else {
		sig, err = mgr.SignWithPassphrase(acc, pass, digest)
	}
	if err != nil {
		fatal(log, "sign", err)
	}
	fmt.Println(hex.EncodeToString(sig))
}

// mustPassphrase reads the passphrase from the environment; keywarden has
// no interactive prompt so it can run under automation.
func mustPassphrase(log *slog.Logger) string {
	pass := os.Getenv("KEYWARDEN_PASSPHRASE")
	if pass == "" {
		fatal(log, "missing passphrase", fmt.Errorf("set KEYWARDEN_PASSPHRASE"))
	}
	return pass
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
