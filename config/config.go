package config

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type AllocationStrategyType string

const (
	STRATEGY_ROUND_ROBIN      AllocationStrategyType = "round_robin"
	STRATEGY_CAPABILITY_BASED AllocationStrategyType = "capability_based"
	STRATEGY_LOAD_BALANCED    AllocationStrategyType = "load_balanced"
	STRATEGY_PRIORITY_BASED   AllocationStrategyType = "priority_based"
)

type Config struct {
	RedisConfig        RedisConfig
	HttpPort           int
	StorageType        StorageType
	AllocationStrategy AllocationStrategyType
	DefaultGas         uint64
	EngineWorkers      int
	ExecutorCapacity   int
	SweepInterval      int
	AnthropicAPIKey    string
	AnthropicModel     string
	LLMMaxAttempts     int
	LogLevel           string
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
}
