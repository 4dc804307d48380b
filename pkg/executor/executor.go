// Package executor defines the Executor contract (§6): a per-model handle
// that runs kernels one at a time and reports profiled timing/power. The
// real model-runtime library this wraps is out of scope (§1) and opaque;
// ProfiledExecutor stands in for it, deriving kernel timing and energy
// straight from the model's Profile so the scheduler core is runnable and
// testable without real accelerator hardware.
package executor

import (
	"time"

	"github.com/cuemby/accelschd/pkg/profile"
	"github.com/cuemby/accelschd/pkg/types"
)

// Executor is the external façade the scheduler dispatches kernels
// through. Implementations must be safe for use by a single scheduler
// goroutine; Sync must block until all previously dispatched kernels have
// completed on the device.
type Executor interface {
	// ExecuteKernel runs kernel idx at freq and returns the measured
	// service time and energy consumed.
	ExecuteKernel(idx int, freq types.Frequency) (serviceTime time.Duration, energyUJ float64, err error)
	NumKernels() int
	KernelName(idx int) (string, error)
	GetGPUPower(freq types.Frequency) (float64, error)
	GetMaxGPUPower() float64
	Sync() error
}

// ProfiledExecutor implements Executor by looking kernel timing up in a
// Profile rather than driving real hardware kernels.
type ProfiledExecutor struct {
	profile *profile.Profile
}

// New builds a ProfiledExecutor over an already-loaded profile.
func New(p *profile.Profile) *ProfiledExecutor {
	return &ProfiledExecutor{profile: p}
}

// ExecuteKernel looks up (time_used, energy_used) for (kernel, freq) from
// the profile: energy = gpu_power[freq] * time * 1e-3, per §6.
func (e *ProfiledExecutor) ExecuteKernel(idx int, freq types.Frequency) (time.Duration, float64, error) {
	execUS, err := e.profile.KernelExecTime(idx, freq)
	if err != nil {
		return 0, 0, err
	}
	powerMW, err := e.profile.GPUPower(freq)
	if err != nil {
		return 0, 0, err
	}
	energyUJ := powerMW * execUS * 1e-3
	return time.Duration(execUS * float64(time.Microsecond)), energyUJ, nil
}

// NumKernels returns the number of kernels in the model.
func (e *ProfiledExecutor) NumKernels() int { return e.profile.NumKernels() }

// KernelName returns the name of kernel idx.
func (e *ProfiledExecutor) KernelName(idx int) (string, error) { return e.profile.KernelName(idx) }

// GetGPUPower returns the profiled average power at freq, in milliwatts.
func (e *ProfiledExecutor) GetGPUPower(freq types.Frequency) (float64, error) {
	return e.profile.GPUPower(freq)
}

// GetMaxGPUPower returns the maximum profiled power over all frequencies.
func (e *ProfiledExecutor) GetMaxGPUPower() float64 { return e.profile.MaxGPUPower() }

// Sync is a no-op: ProfiledExecutor never dispatches asynchronous work to
// real hardware, so there is nothing to wait for.
func (e *ProfiledExecutor) Sync() error { return nil }
