package config

// ObservabilityConfig holds OTLP trace export configuration.
//
// Tracing is disabled until OTLPEndpoint is set. The exporter speaks
// OTLP/HTTP, so any collector (Grafana Agent, Datadog Agent, Jaeger)
// listening on the standard 4318 port works.
// See internal/observability for the tracer provider setup.
type ObservabilityConfig struct {
	// OTLPEndpoint is the collector endpoint, host:port (default: empty, disabled)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	// Insecure disables TLS for the exporter connection (default: true, for local agents)
	Insecure bool `mapstructure:"insecure" json:"insecure"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name attached to spans (default: vitalog)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	// SampleRatio is the trace sampling ratio in [0,1] (default: 1.0)
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio"`
}

// Enabled reports whether trace export is configured.
func (o ObservabilityConfig) Enabled() bool {
	return o.OTLPEndpoint != ""
}
