package config

import "time"

type SecurityConfig interface {
	GetMinPasswordLength() int
	GetResendInterval() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetMinPasswordLength() int {
	return GetEnvInt("MIN_PASSWORD_LENGTH", 8)
}

// GetResendInterval is the minimum gap between confirmation code resends
func (Security) GetResendInterval() time.Duration {
	return GetEnvDuration("RESEND_INTERVAL", 30*time.Second)
}
