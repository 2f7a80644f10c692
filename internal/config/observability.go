package config

// ObservabilityConfig holds observability configuration.
// Exporter endpoints and headers come from the standard OTEL_* variables.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"BACKOFFICE_OTEL_ENABLED" default:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"backoffice"`
	LogLevel    string `env:"BACKOFFICE_LOG_LEVEL" default:"info"`
}
