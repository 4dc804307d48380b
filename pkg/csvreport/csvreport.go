// Package csvreport writes the post-shutdown CSV export of finished tasks
// (§6): one row per task, timestamps relative to the earliest start among
// the exported set.
package csvreport

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/cuemby/accelschd/pkg/task"
	"github.com/cuemby/accelschd/pkg/types"
)

var header = []string{"task_id", "entity_id", "model_id", "start_t", "end_t", "service_time", "energy_used"}

// Write exports snapshots to path as CSV. Only Finished tasks are
// included; start_t and end_t are microseconds relative to the earliest
// start_t among them. An empty snapshot set still writes a header-only
// file.
func Write(path string, snapshots []task.Snapshot) error {
	finished := make([]task.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.State == types.Finished {
			finished = append(finished, s)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartT.Before(finished[j].StartT)
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvreport: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csvreport: writing header: %w", err)
	}

	if len(finished) > 0 {
		epoch := finished[0].StartT
		for _, s := range finished {
			startUS := s.StartT.Sub(epoch).Microseconds()
			endUS := s.EndT.Sub(epoch).Microseconds()
			row := []string{
				fmt.Sprintf("%d", s.ID),
				fmt.Sprintf("%d", s.EntityID),
				fmt.Sprintf("%d", s.ModelID),
				fmt.Sprintf("%d", startUS),
				fmt.Sprintf("%d", endUS),
				fmt.Sprintf("%d", s.ServiceTime.Microseconds()),
				fmt.Sprintf("%g", s.EnergyUsedU),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("csvreport: writing row for task %d: %w", s.ID, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvreport: flushing %s: %w", path, err)
	}
	return nil
}
