package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML shape of the server settings. Durations
// are strings in time.ParseDuration form.
type FileConfig struct {
	Addr               string `yaml:"addr"`
	Strategy           string `yaml:"strategy"`
	Timeout            string `yaml:"timeout"`
	MaxBodySize        int64  `yaml:"max_body_size"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	TraceIDBufferSize  int    `yaml:"trace_id_buffer_size"`
	EnableMetrics      bool   `yaml:"enable_metrics"`
	MetricsNamespace   string `yaml:"metrics_namespace"`
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: read config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("server: parse config %s: %w", path, err)
	}
	return &fc, nil
}

// Config converts the file representation into a runtime Config. Fields
// with no file counterpart (logger, metrics registerer, database handle)
// are left zero for the caller to fill in.
func (fc *FileConfig) Config() (Config, error) {
	strategy, err := ParseStrategy(fc.Strategy)
	if err != nil {
		return Config{}, err
	}

	var timeout time.Duration
	if fc.Timeout != "" {
		timeout, err = time.ParseDuration(fc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("server: parse timeout: %w", err)
		}
	}

	return Config{
		Strategy:           strategy,
		GlobalTimeout:      timeout,
		GlobalMaxBodySize:  fc.MaxBodySize,
		RateLimitPerSecond: fc.RateLimitPerSecond,
		TraceIDBufferSize:  fc.TraceIDBufferSize,
		EnableMetrics:      fc.EnableMetrics,
		MetricsNamespace:   fc.MetricsNamespace,
	}, nil
}
