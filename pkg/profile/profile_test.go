package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accelschd/pkg/types"
)

const testProfileJSON = `{
  "model_name": "m",
  "exec_time": {"900000": 10},
  "energy": {"900000": 5000},
  "gpu_power": {"900000": 500},
  "kernel_profile": {
    "zeta": {"exec_time": {"900000": 3}},
    "alpha": {"exec_time": {"900000": 1}},
    "mu": {"exec_time": {"900000": 2}}
  }
}`

func writeTestProfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(testProfileJSON), 0o644))
	return path
}

// TestLoad_KernelOrderIsDeterministicAcrossLoads guards against the
// kernel_profile map's JSON object key order being discarded by
// encoding/json: two independent Load calls on the same file must assign
// the same kernel_idx to the same kernel name, or two entities sharing a
// profile would silently account kernels against the wrong index.
func TestLoad_KernelOrderIsDeterministicAcrossLoads(t *testing.T) {
	path := writeTestProfile(t)

	p1, err := Load(path)
	require.NoError(t, err)
	p2, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, p1.NumKernels(), p2.NumKernels())
	for i := 0; i < p1.NumKernels(); i++ {
		n1, err := p1.KernelName(i)
		require.NoError(t, err)
		n2, err := p2.KernelName(i)
		require.NoError(t, err)
		assert.Equal(t, n1, n2, "kernel_idx %d must name the same kernel across Load calls", i)
	}
}

// TestLoad_KernelOrderIsLexicographic pins the ordering Load chooses so a
// regression to map-iteration order is caught even with a single Load.
func TestLoad_KernelOrderIsLexicographic(t *testing.T) {
	p, err := Load(writeTestProfile(t))
	require.NoError(t, err)

	require.Equal(t, 3, p.NumKernels())
	names := make([]string, p.NumKernels())
	for i := range names {
		name, err := p.KernelName(i)
		require.NoError(t, err)
		names[i] = name
	}
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, names)
}

func TestLoad_KernelExecTimeAndGPUPower(t *testing.T) {
	p, err := Load(writeTestProfile(t))
	require.NoError(t, err)

	idx, err := indexOf(p, "mu")
	require.NoError(t, err)
	execUS, err := p.KernelExecTime(idx, "900000")
	require.NoError(t, err)
	assert.Equal(t, 2.0, execUS)

	power, err := p.GPUPower("900000")
	require.NoError(t, err)
	assert.Equal(t, 500.0, power)
	assert.Equal(t, 500.0, p.MaxGPUPower())
}

func TestLoad_UnknownFrequency(t *testing.T) {
	p, err := Load(writeTestProfile(t))
	require.NoError(t, err)

	_, err = p.GPUPower("1234")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func indexOf(p *Profile, name string) (int, error) {
	for i := 0; i < p.NumKernels(); i++ {
		n, err := p.KernelName(i)
		if err != nil {
			return 0, err
		}
		if n == name {
			return i, nil
		}
	}
	return 0, types.ErrNotFound
}
