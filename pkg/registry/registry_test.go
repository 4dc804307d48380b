package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accelschd/pkg/slicealloc"
	"github.com/cuemby/accelschd/pkg/types"
)

func writeProfile(t *testing.T, dir, name string, power map[string]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	doc := map[string]interface{}{
		"model_name": name,
		"exec_time":  map[string]float64{},
		"energy":     map[string]float64{},
		"gpu_power":  power,
		"kernel_profile": map[string]interface{}{
			"conv1": map[string]interface{}{
				"exec_time": map[string]float64{"900000": 100.0, "1300500": 60.0},
			},
			"conv2": map[string]interface{}{
				"exec_time": map[string]float64{"900000": 50.0, "1300500": 30.0},
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testParams() slicealloc.Params {
	return slicealloc.Params{
		TotalQuantum: time.Millisecond,
		Alpha:        0.8,
		Granularity:  10 * time.Microsecond,
	}
}

func TestRegistry_CreateEntity(t *testing.T) {
	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)

	e, err := r.GetEntity(eid)
	require.NoError(t, err)
	assert.Equal(t, types.ReferenceWeight, e.Snapshot().Weight)

	_, err = r.CreateEntity(100)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestRegistry_SetEntityPriority(t *testing.T) {
	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)

	require.NoError(t, r.SetEntityPriority(eid, -20))
	e, err := r.GetEntity(eid)
	require.NoError(t, err)
	assert.Equal(t, uint64(88761), e.Snapshot().Weight)

	err = r.SetEntityPriority(eid, 100)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	err = r.SetEntityPriority(types.EntityID(999), 0)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestRegistry_LoadModel(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)

	mid, err := r.LoadModel("model-a", profilePath, eid, "900000")
	require.NoError(t, err)

	m, err := r.GetModel(mid)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumKernels)
	assert.Equal(t, 500.0, m.PowerMW)

	e, err := r.GetEntity(eid)
	require.NoError(t, err)
	assert.Equal(t, 500.0, e.Snapshot().AvgPowerMW)
}

func TestRegistry_LoadModel_UnprofiledFrequencyFails(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)

	_, err = r.LoadModel("model-a", profilePath, eid, "2000000")
	assert.Error(t, err)
}

func TestRegistry_NewTask_SeedsVRuntimeAndIndexes(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)
	mid, err := r.LoadModel("model-a", profilePath, eid, "900000")
	require.NoError(t, err)

	assert.False(t, r.Index().Contains(eid))

	tk, err := r.NewTask(mid)
	require.NoError(t, err)
	assert.Equal(t, types.Submitted, tk.State())
	assert.True(t, r.Index().Contains(eid))
	assert.Equal(t, uint64(types.ReferenceWeight), r.Index().TotalWeight())

	e, err := r.GetEntity(eid)
	require.NoError(t, err)
	assert.Equal(t, 1, e.QueueLen())
}

func TestRegistry_NewTask_SecondTaskDoesNotReindex(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)
	mid, err := r.LoadModel("model-a", profilePath, eid, "900000")
	require.NoError(t, err)

	_, err = r.NewTask(mid)
	require.NoError(t, err)
	_, vrBefore, _ := r.Index().Min()
	_, err = r.NewTask(mid)
	require.NoError(t, err)
	_, vrAfter, _ := r.Index().Min()

	assert.Equal(t, vrBefore, vrAfter)
	e, err := r.GetEntity(eid)
	require.NoError(t, err)
	assert.Equal(t, 2, e.QueueLen())
}

func TestRegistry_NewTask_SeedsFromIndexMinimum(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	e1, err := r.CreateEntity(0)
	require.NoError(t, err)
	e2, err := r.CreateEntity(0)
	require.NoError(t, err)
	m1, err := r.LoadModel("model-a", profilePath, e1, "900000")
	require.NoError(t, err)
	m2, err := r.LoadModel("model-b", profilePath, e2, "900000")
	require.NoError(t, err)

	_, err = r.NewTask(m1)
	require.NoError(t, err)

	r.IndexEntityAndSetVRuntime(e1, 42.0)

	_, err = r.NewTask(m2)
	require.NoError(t, err)

	ent2, err := r.GetEntity(e2)
	require.NoError(t, err)
	assert.Equal(t, 42.0, ent2.Snapshot().VRuntime, "a newly runnable entity should seed at the index minimum")
}

func TestRegistry_OnQueueDrained_RemovesFromIndex(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)
	mid, err := r.LoadModel("model-a", profilePath, eid, "900000")
	require.NoError(t, err)
	_, err = r.NewTask(mid)
	require.NoError(t, err)

	require.True(t, r.Index().Contains(eid))
	r.OnQueueDrained(eid)
	assert.False(t, r.Index().Contains(eid))
	assert.Equal(t, uint64(0), r.Index().TotalWeight())
}

func TestRegistry_RecomputeSlices_SumsToQuantum(t *testing.T) {
	dir := t.TempDir()
	profilePath := writeProfile(t, dir, "model-a.json", map[string]float64{"900000": 500})

	r := New(testParams())
	var entities []types.EntityID
	for i := 0; i < 3; i++ {
		eid, err := r.CreateEntity(0)
		require.NoError(t, err)
		mid, err := r.LoadModel("model-a", profilePath, eid, "900000")
		require.NoError(t, err)
		_, err = r.NewTask(mid)
		require.NoError(t, err)
		entities = append(entities, eid)
	}

	var total time.Duration
	for _, eid := range entities {
		e, err := r.GetEntity(eid)
		require.NoError(t, err)
		total += e.Snapshot().SchedSlice
	}
	diff := testParams().TotalQuantum - total
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 3*testParams().Granularity)
}

func TestRegistry_AccumulateRuntime(t *testing.T) {
	r := New(testParams())
	eid, err := r.CreateEntity(0)
	require.NoError(t, err)

	r.AccumulateRuntime(eid, 5*time.Millisecond)
	r.AccumulateRuntime(eid, 2*time.Millisecond)

	e, err := r.GetEntity(eid)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Millisecond, e.Snapshot().Runtime)
}
