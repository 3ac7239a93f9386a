// Package metrics exposes Prometheus instruments for key lifecycle and
// signing activity. Label values never contain addresses or passphrases.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KeystoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keywarden_keystore_ops_total",
		Help: "Keystore lifecycle operations by op and result.",
	}, []string{"op", "result"})

	SignOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keywarden_sign_ops_total",
		Help: "Signing operations by path (cached, passphrase) and result.",
	}, []string{"path", "result"})

	UnlockedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keywarden_unlocked_accounts",
		Help: "Accounts currently held decrypted in the unlock cache.",
	})

	PassphraseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keywarden_passphrase_failures_total",
		Help: "Failed passphrase attempts across all operations.",
	})

	ThrottledAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keywarden_throttled_attempts_total",
		Help: "Passphrase attempts rejected by the per-address throttle.",
	})
)

// ObserveOp records a keystore op outcome in one call.
func ObserveOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	KeystoreOps.WithLabelValues(op, result).Inc()
}
