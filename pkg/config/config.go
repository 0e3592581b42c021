package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Identity — the trader this process runs as, and the tag suffix
	// new strategy/order ids are minted with.
	TraderName  string
	TraderTag   string
	StrategyTag string

	// Engine
	EngineQueueSize int

	// Simulated execution client (the only venue client shipped in this
	// module; a real venue adapter is out of scope per spec.md).
	SimulatedFillDelay time.Duration

	// Bar aggregation settings. LoadFromEnv reads them and Validate checks
	// them; no other package in this module reads these fields.
	BarPriceType    string // BID, ASK, or MID
	BarTickCount    int
	BarInterval     int
	BarIntervalUnit string // SECOND, MINUTE, or HOUR

	// Risk gate (equity circuit breaker)
	RiskGateEnabled         bool
	RiskGateCheckInterval   time.Duration
	RiskGateTradeMultiplier float64
	RiskGateMinAbsolute     float64
	RiskGateHysteresisRatio float64

	// Storage
	StorageMode  string // "memory", "postgres", or "sqlite"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	SQLitePath   string

	// Query cache (execdb.CachedDatabase)
	CacheEnabled    bool
	CacheMaxEntries int64

	// Transport (pkg/transport)
	TransportMode           string // "channel" or "websocket"
	WSListenAddr            string
	WSPoolSize              int
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Identity defaults
		TraderName:  getEnvOrDefault("TRADER_NAME", "EXECORE"),
		TraderTag:   getEnvOrDefault("TRADER_TAG", "001"),
		StrategyTag: getEnvOrDefault("STRATEGY_TAG", "001"),

		// Engine defaults
		EngineQueueSize: getIntOrDefault("ENGINE_QUEUE_SIZE", 256),

		// Simulated client defaults
		SimulatedFillDelay: getDurationOrDefault("SIMULATED_FILL_DELAY", 0),

		// Bar defaults
		BarPriceType:    getEnvOrDefault("BAR_PRICE_TYPE", "MID"),
		BarTickCount:    getIntOrDefault("BAR_TICK_COUNT", 100),
		BarInterval:     getIntOrDefault("BAR_INTERVAL", 1),
		BarIntervalUnit: getEnvOrDefault("BAR_INTERVAL_UNIT", "MINUTE"),

		// Risk gate defaults
		RiskGateEnabled:         getBoolOrDefault("RISK_GATE_ENABLED", true),
		RiskGateCheckInterval:   getDurationOrDefault("RISK_GATE_CHECK_INTERVAL", 300*time.Second),
		RiskGateTradeMultiplier: getFloat64OrDefault("RISK_GATE_TRADE_MULTIPLIER", 3.0),
		RiskGateMinAbsolute:     getFloat64OrDefault("RISK_GATE_MIN_ABSOLUTE", 5.0),
		RiskGateHysteresisRatio: getFloat64OrDefault("RISK_GATE_HYSTERESIS_RATIO", 1.5),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "execore"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "execore"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "execore"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "execore.db"),

		// Cache defaults
		CacheEnabled:    getBoolOrDefault("CACHE_ENABLED", true),
		CacheMaxEntries: int64(getIntOrDefault("CACHE_MAX_ENTRIES", 100000)),

		// Transport defaults
		TransportMode:           getEnvOrDefault("TRANSPORT_MODE", "channel"),
		WSListenAddr:            getEnvOrDefault("WS_LISTEN_ADDR", ":9090"),
		WSPoolSize:              getIntOrDefault("WS_POOL_SIZE", 20),
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 10000),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() (err error) {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT cannot be empty")
	}

	if c.TraderName == "" {
		return errors.New("TRADER_NAME cannot be empty")
	}

	switch c.StorageMode {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'memory', 'postgres', or 'sqlite', got %q", c.StorageMode)
	}

	switch c.TransportMode {
	case "channel", "websocket":
	default:
		return fmt.Errorf("TRANSPORT_MODE must be 'channel' or 'websocket', got %q", c.TransportMode)
	}

	switch c.BarPriceType {
	case "BID", "ASK", "MID":
	default:
		return fmt.Errorf("BAR_PRICE_TYPE must be 'BID', 'ASK', or 'MID', got %q", c.BarPriceType)
	}

	switch c.BarIntervalUnit {
	case "SECOND", "MINUTE", "HOUR":
	default:
		return fmt.Errorf("BAR_INTERVAL_UNIT must be 'SECOND', 'MINUTE', or 'HOUR', got %q", c.BarIntervalUnit)
	}

	if c.BarTickCount <= 0 {
		return fmt.Errorf("BAR_TICK_COUNT must be positive, got %d", c.BarTickCount)
	}

	if c.BarInterval <= 0 {
		return fmt.Errorf("BAR_INTERVAL must be positive, got %d", c.BarInterval)
	}

	if c.EngineQueueSize < 1 {
		return fmt.Errorf("ENGINE_QUEUE_SIZE must be at least 1, got %d", c.EngineQueueSize)
	}

	if c.RiskGateTradeMultiplier <= 0 {
		return fmt.Errorf("RISK_GATE_TRADE_MULTIPLIER must be positive, got %f", c.RiskGateTradeMultiplier)
	}

	if c.RiskGateMinAbsolute <= 0 {
		return fmt.Errorf("RISK_GATE_MIN_ABSOLUTE must be positive, got %f", c.RiskGateMinAbsolute)
	}

	if c.RiskGateHysteresisRatio < 1.0 {
		return fmt.Errorf("RISK_GATE_HYSTERESIS_RATIO must be >= 1.0, got %f", c.RiskGateHysteresisRatio)
	}

	// Validate WebSocket pool configuration
	if c.WSPoolSize < 1 {
		return fmt.Errorf("WS_POOL_SIZE must be at least 1, got %d", c.WSPoolSize)
	}

	if c.WSPoolSize > 20 {
		return fmt.Errorf("WS_POOL_SIZE must not exceed 20, got %d", c.WSPoolSize)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}
