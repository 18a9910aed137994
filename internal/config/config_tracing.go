package config

// TracingConfig configures the process's OpenTelemetry span export. An empty
// Endpoint disables export and leaves the tracer a no-op, mirroring
// LoggingConfig's all-or-nothing simplicity.
type TracingConfig struct {
	ServiceName    string  `yaml:"service_name"`
	Endpoint       string  `yaml:"endpoint"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	EnableInsecure bool    `yaml:"enable_insecure"`
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:  "reactor",
		SamplingRate: 1.0,
	}
}
