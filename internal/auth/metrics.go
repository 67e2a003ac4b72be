package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcome labels.
const (
	labelAuthenticated       = "authenticated"
	labelProvisioned         = "provisioned"
	labelDeferred            = "deferred"
	labelNoCertificate       = "no_certificate"
	labelAuthFailed          = "authentication_failed"
	labelEmptyUsername       = "empty_username"
	labelUserCreationFailed  = "user_creation_failed"
	labelPasswordSucceeded   = "password_succeeded"
	labelPasswordRejected    = "password_rejected"
	labelPasswordUnavailable = "password_unavailable"
)

var (
	authDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certlogin_auth_decisions_total",
			Help: "Total number of authentication decisions by outcome",
		},
		[]string{"outcome"},
	)

	accountsProvisionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "certlogin_accounts_provisioned_total",
			Help: "Total number of accounts provisioned from client certificates",
		},
	)
)

func recordDecision(outcome string) {
	authDecisionsTotal.WithLabelValues(outcome).Inc()
}
