package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Workload is a batch description of entities, their models, and the
// number of inference tasks to submit against each — the YAML input to
// `accelschd run`'s batch mode.
type Workload struct {
	Entities []WorkloadEntity `yaml:"entities"`
}

// WorkloadEntity describes one entity to create and the models to load
// onto it.
type WorkloadEntity struct {
	Priority int             `yaml:"priority"`
	Models   []WorkloadModel `yaml:"models"`
}

// WorkloadModel describes one model to load and how many tasks to submit
// against it once loaded.
type WorkloadModel struct {
	Path        string `yaml:"path"`
	ProfilePath string `yaml:"profile_path"`
	Frequency   string `yaml:"frequency"`
	Tasks       int    `yaml:"tasks"`
}

// LoadWorkload reads and parses a workload YAML file.
func LoadWorkload(path string) (Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workload{}, fmt.Errorf("config: reading workload %s: %w", path, err)
	}
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Workload{}, fmt.Errorf("config: parsing workload %s: %w", path, err)
	}
	return w, nil
}
