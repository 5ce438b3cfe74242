// Package config defines service configuration structures and loading
// hooks.
package config

import "runtime"

// ModelConfig describes one provider-backed model adapter.
type ModelConfig struct {
	// Name identifies the adapter in submissions and metrics.
	Name string `koanf:"name"`

	// Provider selects the wire protocol: "openai", "gemini" or
	// "static".
	Provider string `koanf:"provider"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates against the provider.
	APIKey string `koanf:"api_key"`

	// ModelID names the concrete model at the provider, e.g. "gpt-4".
	ModelID string `koanf:"model_id"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds each priority lane of the job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of consensus workers.
	WorkerCount int `koanf:"worker_count"`

	// IdempotencySize bounds the idempotency key cache.
	IdempotencySize int `koanf:"idempotency_size"`

	// DefaultStrategy applies when a submission names no strategy.
	DefaultStrategy string `koanf:"default_strategy"`

	// DefaultTaskType applies when a submission names no task type.
	DefaultTaskType string `koanf:"default_task_type"`

	// ConfidenceThreshold is the default aggregation cutoff in [0,1].
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// AdapterTimeoutMS bounds each individual model call.
	AdapterTimeoutMS int `koanf:"adapter_timeout_ms"`

	// DispatchTimeoutMS bounds one whole fan-out round.
	DispatchTimeoutMS int `koanf:"dispatch_timeout_ms"`

	// JobTimeoutS bounds the wall-clock lifetime of a job.
	JobTimeoutS int `koanf:"job_timeout_s"`

	// RetentionMin sets how long terminal jobs stay readable.
	RetentionMin int `koanf:"retention_min"`

	// SweepIntervalS sets how often the retention janitor runs.
	SweepIntervalS int `koanf:"sweep_interval_s"`

	// Models lists the provider-backed adapters. Empty means the
	// service runs on deterministic static doubles.
	Models []ModelConfig `koanf:"models"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		IdempotencySize:     10_000,
		DefaultStrategy:     "majority",
		DefaultTaskType:     "general",
		ConfidenceThreshold: 0.7,
		AdapterTimeoutMS:    30_000,
		DispatchTimeoutMS:   45_000,
		JobTimeoutS:         60,
		RetentionMin:        30,
		SweepIntervalS:      60,
	}
}
