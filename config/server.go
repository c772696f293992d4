package config

import "time"

// ServerConfig holds the settings healthserver reads from the environment
// at startup.
type ServerConfig struct {
	ServiceName string
	Port        int
	LogLevel    string
	LogFormat   string

	MetricsEnabled bool
	MetricsPath    string

	ShutdownGrace time.Duration
}

// LoadServerConfig reads a ServerConfig from the environment, applying
// documented defaults for anything unset.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		ServiceName:    GetEnv("SERVICE_NAME", "healthcheck"),
		Port:           GetEnvInt("PORT", 8080),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "json"),
		MetricsEnabled: GetEnvBool("METRICS_ENABLED", true),
		MetricsPath:    GetEnv("METRICS_PATH", "/metrics"),
		ShutdownGrace:  GetEnvDuration("SHUTDOWN_GRACE", 5*time.Second),
	}
}
