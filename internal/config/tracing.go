package config

// TracingConfig configures OTLP/HTTP trace export.  Tracing is off when
// Endpoint is empty.
type TracingConfig struct {
    Endpoint    string // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
    Insecure    bool   // OTEL_EXPORTER_OTLP_INSECURE
    ServiceName string // OTEL_SERVICE_NAME
}

// LoadTracingConfig reads the OpenTelemetry settings.
func LoadTracingConfig() TracingConfig {
    return TracingConfig{
        Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
        Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
        ServiceName: getenv("OTEL_SERVICE_NAME", "hotel-booking-engine"),
    }
}
