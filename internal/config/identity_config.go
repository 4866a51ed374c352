package config

import "time"

type IdentityConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetAccountAPIURL() string
	GetRequestTimeout() time.Duration
}

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIssuerURL returns the OIDC issuer of the identity provider.
// Empty selects the in-memory provider (demo mode).
func (Identity) GetIssuerURL() string {
	return GetEnv("ISSUER_URL", "")
}

func (Identity) GetClientID() string {
	return GetEnv("CLIENT_ID", "certprep-mobile")
}

func (Identity) GetClientSecret() string {
	return GetEnv("CLIENT_SECRET", "")
}

// GetAccountAPIURL returns the base URL for sign-up, confirmation and password reset.
// Defaults to the issuer when unset.
func (i Identity) GetAccountAPIURL() string {
	return GetEnv("ACCOUNT_API_URL", i.GetIssuerURL())
}

func (Identity) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
}
