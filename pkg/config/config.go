// Package config loads the YAML file that tunes the scheduler (slice
// allocator parameters and the governor's sysfs paths), the way
// cmd/warren's apply command loads a YAML resource: os.ReadFile then
// yaml.Unmarshal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scheduler configuration file.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Governor  GovernorConfig  `yaml:"governor"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SchedulerConfig tunes the slice allocator.
type SchedulerConfig struct {
	TotalQuantum time.Duration `yaml:"total_quantum"`
	Alpha        float64       `yaml:"alpha"`
	Granularity  time.Duration `yaml:"granularity"`
}

// GovernorConfig points at the accelerator's sysfs-style DVFS endpoints.
type GovernorConfig struct {
	MinFreqPath     string `yaml:"min_freq_path"`
	MaxFreqPath     string `yaml:"max_freq_path"`
	CurFreqPath     string `yaml:"cur_freq_path"`
	AvailFreqsPath  string `yaml:"avail_freqs_path"`
	PowerSensorPath string `yaml:"power_sensor_path"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with reasonable defaults: a one millisecond
// quantum, alpha of 0.8, and ten microsecond refinement steps.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			TotalQuantum: time.Millisecond,
			Alpha:        0.8,
			Granularity:  10 * time.Microsecond,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
	}
}

// Load reads and parses a YAML config file, filling any field the file
// omits from Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Scheduler.Alpha <= 0 || cfg.Scheduler.Alpha > 1 {
		return Config{}, fmt.Errorf("config: scheduler.alpha must be in (0, 1], got %v", cfg.Scheduler.Alpha)
	}
	return cfg, nil
}
