package config

type StorageConfig interface {
	GetRedisAddr() string
	GetRedisPrefix() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetRedisAddr returns the Redis address for onboarding state.
// Empty keeps onboarding state in memory.
func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "certprep:onboarding")
}
