package server

// HealthChecker reports storage integrity; a healthy store returns a single "ok".
type HealthChecker interface {
	IntegrityCheck() ([]string, error)
}
