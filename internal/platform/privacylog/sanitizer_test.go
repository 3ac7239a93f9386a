package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSanitizeArgsFingerprintsAddresses(t *testing.T) {
	args := SanitizeArgs(
		"address", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"passphrase", "hunter2",
		"op", "unlock",
	)
	if len(args) != 6 {
		t.Fatalf("unexpected args length: %d", len(args))
	}
	if got := args[0]; got != "address_fp" {
		t.Fatalf("unexpected key: %v", got)
	}
	if got := args[1].(string); !strings.HasPrefix(got, "fp_") {
		t.Fatalf("unexpected fingerprint value: %q", got)
	}
	if got := args[3].(string); got != redactedValue {
		t.Fatalf("passphrase not redacted: %q", got)
	}
	if got := args[4]; got != "op" {
		t.Fatalf("expected untouched key, got %v", got)
	}
}

func TestFingerprintIgnoresAddressCase(t *testing.T) {
	lower := FingerprintID("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	checksummed := FingerprintID("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if lower != checksummed {
		t.Fatalf("fingerprint differs across address casing")
	}
}

func TestSanitizingHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(WrapHandler(base))
	logger.Info("test", "address", "0xabc", "passphrase", "secret", "op", "sign")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["address"]; ok {
		t.Fatal("address should not be present in plain form")
	}
	if _, ok := payload["address_fp"]; !ok {
		t.Fatal("address_fp should be present")
	}
	if got, _ := payload["passphrase"].(string); got != redactedValue {
		t.Fatalf("expected redacted passphrase, got %q", got)
	}
	if got, _ := payload["op"].(string); got != "sign" {
		t.Fatalf("expected untouched op, got %q", got)
	}
}

func TestSanitizingHandlerImplementsSlogHandlerContract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("account", "0xdef"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "account_fp") {
		t.Fatalf("expected sanitized account key, got %s", buf.String())
	}
}
