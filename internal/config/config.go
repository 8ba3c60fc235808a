/*
Copyright 2026 Brightline Collections.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates the orchestrator's flat configuration
// surface from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/brightline/collections-orchestrator/pkg/circuitbreaker"
	"github.com/brightline/collections-orchestrator/pkg/retry"
)

// RoutingConfig holds the confidence thresholds that drive C10's routing
// decision.
type RoutingConfig struct {
	AutoApprovalThreshold   float64 `yaml:"auto_approval_threshold" validate:"gte=0,lte=1"`
	ManualApprovalThreshold float64 `yaml:"manual_approval_threshold" validate:"gte=0,lte=1"`
}

// TimeoutConfig holds the two distinct timeout horizons: C7's conversation
// response timeout and C9's manager approval timeout. These must never share
// a monitor instance.
type TimeoutConfig struct {
	EscalationTimeoutHours int `yaml:"escalation_timeout_hours" validate:"gt=0"`
	ApprovalTimeoutHours   int `yaml:"approval_timeout_hours" validate:"gt=0"`
}

// PaymentPlanConfig holds C5/C6's policy constants.
type PaymentPlanConfig struct {
	MaxWeeks   int     `yaml:"max_payment_weeks" validate:"gt=0"`
	MinWeekly  float64 `yaml:"min_weekly_payment" validate:"gt=0"`
	MaxWeekly  float64 `yaml:"max_weekly_payment" validate:"gtfield=MinWeekly"`
}

// CircuitBreakerConfig holds C1's tunables.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"cb_failure_threshold" validate:"gt=0"`
	SuccessThreshold int           `yaml:"cb_success_threshold" validate:"gt=0"`
	Timeout          time.Duration `yaml:"cb_timeout_seconds" validate:"gt=0"`
	HalfOpenMaxCalls int           `yaml:"cb_half_open_max_calls" validate:"gt=0"`
}

// ToBreaker converts the YAML-shaped tunables into circuitbreaker.Config.
// Defined here rather than on the circuitbreaker package so that package
// never needs to import config.
func (c CircuitBreakerConfig) ToBreaker() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		Timeout:          c.Timeout,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
	}
}

// RetryConfig holds C2's tunables.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"retry_max_attempts" validate:"gt=0"`
	BaseDelay       time.Duration `yaml:"retry_base_delay_seconds" validate:"gt=0"`
	MaxDelay        time.Duration `yaml:"retry_max_delay_seconds" validate:"gtfield=BaseDelay"`
	ExponentialBase float64       `yaml:"retry_exponential_base" validate:"gt=1"`
}

// ToRetry converts the YAML-shaped tunables into retry.Config, using
// retry.DefaultRetryable for the retryability classification.
func (c RetryConfig) ToRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     uint64(c.MaxAttempts),
		BaseDelay:       c.BaseDelay,
		MaxDelay:        c.MaxDelay,
		ExponentialBase: c.ExponentialBase,
		Retryable:       retry.DefaultRetryable,
	}
}

// MonitorConfig holds C7's scan cadence.
type MonitorConfig struct {
	ScanIntervalSeconds time.Duration `yaml:"monitor_scan_interval_seconds" validate:"gt=0"`
}

// MetricsConfig holds C11's retention bounds.
type MetricsConfig struct {
	WindowPoints       int `yaml:"metrics_window_points" validate:"gt=0"`
	HistogramCapacity  int `yaml:"metrics_histogram_capacity" validate:"gt=0"`
}

// DependencyConfig is a per-egress-dependency endpoint/timeout pair.
type DependencyConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LLMConfig selects and configures the chat-completion provider.
type LLMConfig struct {
	Provider       string        `yaml:"provider" validate:"required,oneof=anthropic bedrock langchain"`
	Model          string        `yaml:"model" validate:"required"`
	Endpoint       string        `yaml:"endpoint"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	Temperature    float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int           `yaml:"max_tokens" validate:"gt=0"`
	MaxContextSize int           `yaml:"max_context_size" validate:"gte=0"`
	AnthropicKey   string        `yaml:"-" env:"ORC_ANTHROPIC_API_KEY"`
}

// StorageConfig holds D5/D6's connection settings. DSNs are the one surface
// routinely overridden per-environment (secrets injected by the deploy
// tooling), so they carry env tags on top of their yaml ones.
type StorageConfig struct {
	PostgresDSN string        `yaml:"postgres_dsn" env:"ORC_POSTGRES_DSN" validate:"required"`
	RedisAddr   string        `yaml:"redis_addr" env:"ORC_REDIS_ADDR" validate:"required"`
	CacheTTL    time.Duration `yaml:"cache_ttl" validate:"gt=0"`
}

// ServerConfig holds D7's listen address.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"ORC_LISTEN_ADDR" validate:"required"`
}

// LoggingConfig selects the process-wide logrus formatter/level.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"required,oneof=json text"`
}

// Config is the orchestrator's single flat configuration surface.
type Config struct {
	Routing       RoutingConfig        `yaml:"routing" validate:"required"`
	Timeouts      TimeoutConfig        `yaml:"timeouts" validate:"required"`
	PaymentPlan   PaymentPlanConfig    `yaml:"payment_plan" validate:"required"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" validate:"required"`
	Retry         RetryConfig          `yaml:"retry" validate:"required"`
	Monitor       MonitorConfig        `yaml:"monitor" validate:"required"`
	Metrics       MetricsConfig        `yaml:"metrics" validate:"required"`
	Logging       LoggingConfig        `yaml:"logging" validate:"required"`
	Server        ServerConfig         `yaml:"server" validate:"required"`
	Storage       StorageConfig        `yaml:"storage" validate:"required"`
	LLM           LLMConfig            `yaml:"llm" validate:"required"`
	TenantData    DependencyConfig     `yaml:"tenant_data" validate:"required"`
	SMSGateway    DependencyConfig     `yaml:"sms_gateway" validate:"required"`
	Notification  DependencyConfig     `yaml:"notification" validate:"required"`
}

// Default returns the configuration with every default named in the
// specification's configuration surface.
func Default() *Config {
	return &Config{
		Routing: RoutingConfig{
			AutoApprovalThreshold:   0.85,
			ManualApprovalThreshold: 0.60,
		},
		Timeouts: TimeoutConfig{
			EscalationTimeoutHours: 36,
			ApprovalTimeoutHours:   24,
		},
		PaymentPlan: PaymentPlanConfig{
			MaxWeeks:  12,
			MinWeekly: 25.00,
			MaxWeekly: 1000.00,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			Timeout:          60 * time.Second,
			HalfOpenMaxCalls: 5,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			BaseDelay:       1 * time.Second,
			MaxDelay:        30 * time.Second,
			ExponentialBase: 2.0,
		},
		Monitor: MonitorConfig{
			ScanIntervalSeconds: 300 * time.Second,
		},
		Metrics: MetricsConfig{
			WindowPoints:      10000,
			HistogramCapacity: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

var validate = validator.New()

// Load reads and validates a YAML configuration file, starting from Default()
// so an omitted section keeps its documented default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
