package config

import (
	"os"
	"strconv"
	"time"
)

const (
	appNameVar     = "APP_NAME"
	logLevelVar    = "LOG_LEVEL"
	metricsAddrVar = "METRICS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "CertPrep")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetMetricsAddr returns the listen address for the /metrics endpoint.
// Empty disables the endpoint.
func (EnvVars) GetMetricsAddr() string {
	return GetEnv(metricsAddrVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt returns the integer value of envVar, or defaultValue if it is unset or malformed
func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses envVar with time.ParseDuration, falling back to defaultValue
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}
