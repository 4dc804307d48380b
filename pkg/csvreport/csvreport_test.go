package csvreport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accelschd/pkg/task"
	"github.com/cuemby/accelschd/pkg/types"
)

func TestWrite_HeaderOnlyForEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, Write(path, nil))

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, header, rows[0])
}

func TestWrite_SkipsUnfinishedTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	snaps := []task.Snapshot{
		{ID: 1, State: types.Submitted},
		{ID: 2, State: types.Started},
	}
	require.NoError(t, Write(path, snaps))

	rows := readCSV(t, path)
	assert.Len(t, rows, 1, "only the header row, no finished tasks")
}

func TestWrite_TimestampsRelativeToEarliestStart(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "report.csv")

	snaps := []task.Snapshot{
		{
			ID: 2, EntityID: 1, ModelID: 1, State: types.Finished,
			StartT: epoch.Add(100 * time.Microsecond), EndT: epoch.Add(150 * time.Microsecond),
			ServiceTime: 40 * time.Microsecond, EnergyUsedU: 12.5,
		},
		{
			ID: 1, EntityID: 1, ModelID: 1, State: types.Finished,
			StartT: epoch, EndT: epoch.Add(50 * time.Microsecond),
			ServiceTime: 45 * time.Microsecond, EnergyUsedU: 9,
		},
	}
	require.NoError(t, Write(path, snaps))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	// Row for task 1 (earliest start) comes first and is relative to itself.
	assert.Equal(t, []string{"1", "1", "1", "0", "50", "45", "9"}, rows[1])
	assert.Equal(t, []string{"2", "1", "1", "100", "150", "40", "12.5"}, rows[2])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
