package config

type Config interface {
	EnvConfig
	IdentityConfig
	SecurityConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type mainConfig struct {
	EnvVars
	Identity
	Security
	Storage
}

func New() Config {
	return mainConfig{}
}
