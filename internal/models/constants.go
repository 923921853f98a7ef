package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	TypePresencial = "presencial"
	TypeOnline     = "online"
)

const (
	RoleAdmin    = "admin"
	RolePaciente = "paciente"
	RoleParceiro = "parceiro"
)

const (
	// DefaultSessionTTL is how long a cached session context lives in Redis.
	DefaultSessionTTL = 24 * 60 * 60 // 24h in seconds

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 128

	// RateLimitRequests requests allowed per caller inside the window.
	RateLimitRequests = 60

	// RateLimitWindow is the rate limit window in seconds.
	RateLimitWindow = 60
)

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidRole reports whether r is a known caller role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RolePaciente, RoleParceiro:
		return true
	}
	return false
}
