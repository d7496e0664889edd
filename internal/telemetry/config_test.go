package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
	assert.InDelta(t, DefaultSampling, (&TracingConfig{}).GetSampling(), 0.0001)

	cfg = &Config{ServiceName: "sync-a", ServiceVersion: "1.2.3", Endpoint: "otel:4318"}
	assert.Equal(t, "sync-a", cfg.GetServiceName())
	assert.Equal(t, "1.2.3", cfg.GetServiceVersion())
	assert.Equal(t, "otel:4318", cfg.GetEndpoint())
	assert.InDelta(t, 0.5, (&TracingConfig{Sampling: 0.5}).GetSampling(), 0.0001)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{name: "disabled config skips checks", config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 3}}},
		{
			name:   "valid config",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1}, Metrics: &MetricsConfig{Enabled: true}},
		},
		{
			name:    "sampling above one",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:    "negative sampling",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			wantErr: "tracing: sampling",
		},
		{
			name:    "no metrics exporter",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, DisableOTLP: true}},
			wantErr: "metrics: at least one",
		},
		{
			name:   "prometheus only",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, DisableOTLP: true, Prometheus: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
