package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AccountsCreated       prometheus.Counter
	TokensIssued          prometheus.Counter
	VerificationsStarted  prometheus.Counter
	VerificationsVerified prometheus.Counter
	VerificationsFailed   prometheus.Counter
	AccountsUnlinked      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tunelink_linked_accounts_created_total",
			Help: "Total number of platform accounts added to users",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tunelink_verification_tokens_issued_total",
			Help: "Total number of challenge tokens minted",
		}),
		VerificationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tunelink_verifications_started_total",
			Help: "Total number of verification commands published",
		}),
		VerificationsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tunelink_verifications_verified_total",
			Help: "Total number of verification results folded back as verified",
		}),
		VerificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tunelink_verifications_failed_total",
			Help: "Total number of verification results folded back as invalid",
		}),
		AccountsUnlinked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tunelink_linked_accounts_unlinked_total",
			Help: "Total number of platform accounts removed from users",
		}),
	}
}

func (m *Metrics) IncrementAccountsCreated() { m.AccountsCreated.Inc() }

func (m *Metrics) IncrementTokensIssued() { m.TokensIssued.Inc() }

func (m *Metrics) IncrementVerificationsStarted() { m.VerificationsStarted.Inc() }

func (m *Metrics) IncrementVerificationsVerified() { m.VerificationsVerified.Inc() }

func (m *Metrics) IncrementVerificationsFailed() { m.VerificationsFailed.Inc() }

func (m *Metrics) IncrementAccountsUnlinked() { m.AccountsUnlinked.Inc() }
