// Package profile parses the static per-model JSON profile (§6): measured
// execution time, energy, and power per frequency, plus per-kernel
// breakdowns. Profiling itself is out of scope (§1); this package only
// loads what the offline profiler produced.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cuemby/accelschd/pkg/types"
)

// KernelProfile is the per-kernel exec_time table.
type KernelProfile struct {
	ExecTimeUS map[types.Frequency]float64 `json:"exec_time"`
}

// Profile is one model's static profile, as produced by the offline
// profiler and consumed by the scheduler's executor and accounting.
type Profile struct {
	ModelName      string                        `json:"model_name"`
	ExecTimeUS     map[types.Frequency]float64   `json:"exec_time"`
	EnergyUJ       map[types.Frequency]float64   `json:"energy"`
	GPUPowerMW     map[types.Frequency]float64   `json:"gpu_power"`
	KernelProfiles map[string]KernelProfile      `json:"kernel_profile"`
	kernelNames    []string
}

// Load reads and parses a profile JSON file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading profile %s: %v", types.ErrFail, path, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parsing profile %s: %v", types.ErrFail, path, err)
	}
	// encoding/json unmarshals kernel_profile into a map, which discards
	// JSON object key order entirely; iterating the map directly would
	// assign kernel_idx non-deterministically across Load calls on the
	// same file. Sort by name instead so idx<->kernel identity is stable.
	p.kernelNames = make([]string, 0, len(p.KernelProfiles))
	for name := range p.KernelProfiles {
		p.kernelNames = append(p.kernelNames, name)
	}
	sort.Strings(p.kernelNames)
	return &p, nil
}

// NumKernels returns the number of kernels described by kernel_profile.
func (p *Profile) NumKernels() int {
	return len(p.kernelNames)
}

// KernelName returns the name of the kernel at idx. Kernel order is
// lexicographic by name, not JSON object order (map iteration discards
// that); it is stable across repeated Load calls on the same file and for
// the lifetime of a loaded Profile.
func (p *Profile) KernelName(idx int) (string, error) {
	if idx < 0 || idx >= len(p.kernelNames) {
		return "", types.ErrNotFound
	}
	return p.kernelNames[idx], nil
}

// KernelExecTime returns the profiled execution time, in microseconds, for
// the kernel at idx at the given frequency.
func (p *Profile) KernelExecTime(idx int, freq types.Frequency) (float64, error) {
	name, err := p.KernelName(idx)
	if err != nil {
		return 0, err
	}
	kp, ok := p.KernelProfiles[name]
	if !ok {
		return 0, types.ErrNotFound
	}
	t, ok := kp.ExecTimeUS[freq]
	if !ok {
		return 0, types.ErrNotFound
	}
	return t, nil
}

// GPUPower returns the profiled average power, in milliwatts, at freq.
func (p *Profile) GPUPower(freq types.Frequency) (float64, error) {
	v, ok := p.GPUPowerMW[freq]
	if !ok {
		return 0, types.ErrNotFound
	}
	return v, nil
}

// MaxGPUPower returns the maximum power, in milliwatts, over every
// frequency in the profile.
func (p *Profile) MaxGPUPower() float64 {
	var max float64
	for _, w := range p.GPUPowerMW {
		if w > max {
			max = w
		}
	}
	return max
}
