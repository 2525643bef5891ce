package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados de operaciones del flujo de autenticación.
const (
	OutcomeSuccess            = "success"
	OutcomeValidationError    = "validation_error"
	OutcomeDuplicateEmail     = "duplicate_email"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeStoreError         = "store_error"
	OutcomeInternalError      = "internal_error"
)

// Resultados de verificación de token.
const (
	TokenResultOK           = "ok"
	TokenResultExpired      = "expired"
	TokenResultInvalid      = "invalid"
	TokenResultUserNotFound = "user_not_found"
)

// AuthOperations cuenta register/login/authenticate por resultado.
var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "session_auth_operations_total",
		Help: "Total number of auth workflow operations",
	},
	[]string{"operation", "outcome"},
)

// TokenVerifications cuenta verificaciones de token; conserva la distinción expired/invalid.
var TokenVerifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "session_auth_token_verifications_total",
		Help: "Total number of session token verifications",
	},
	[]string{"result"},
)

// PasswordHashDuration mide el costo de bcrypt, incluida la espera por un slot.
var PasswordHashDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "session_auth_password_hash_seconds",
		Help:    "Password hash and verify duration in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)

// RegisterMetrics registra las métricas del paquete. Debe llamarse una vez al arrancar.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations)
	reg.MustRegister(TokenVerifications)
	reg.MustRegister(PasswordHashDuration)
}

func observeHash(op string, start time.Time) {
	PasswordHashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
