// Package rpc is the synchronous request façade the spec's RPC surface
// describes (§6): CreateEntity, LoadModel, SetEntityPriority, and Infer,
// each logged with a per-request correlation ID the way the teacher's
// pkg/api server logs a gRPC call, minus the gRPC/mTLS transport
// (explicitly out of scope). The handlers record no timing or metrics.
package rpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/accelschd/pkg/log"
	"github.com/cuemby/accelschd/pkg/registry"
	"github.com/cuemby/accelschd/pkg/task"
	"github.com/cuemby/accelschd/pkg/types"
)

// Handlers fronts a Registry with the small set of operations an external
// caller may invoke. Every call is tagged with a correlation ID for
// logging; the ID has no meaning to the scheduling core itself.
type Handlers struct {
	reg    *registry.Registry
	logger zerolog.Logger
}

// New constructs a Handlers over an already-running Registry.
func New(reg *registry.Registry) *Handlers {
	return &Handlers{
		reg:    reg,
		logger: log.WithComponent("rpc"),
	}
}

func (h *Handlers) requestLogger() (zerolog.Logger, string) {
	corrID := uuid.New().String()
	return h.logger.With().Str("request_id", corrID).Logger(), corrID
}

// CreateEntity registers a new scheduling entity at the given priority.
func (h *Handlers) CreateEntity(ctx context.Context, priority int) (types.EntityID, error) {
	l, corrID := h.requestLogger()
	eid, err := h.reg.CreateEntity(priority)
	if err != nil {
		l.Error().Err(err).Int("priority", priority).Msg("create_entity failed")
		return 0, fmt.Errorf("request %s: %w", corrID, err)
	}
	l.Info().Uint64("entity_id", uint64(eid)).Msg("create_entity")
	return eid, nil
}

// SetEntityPriority updates an existing entity's scheduling priority.
func (h *Handlers) SetEntityPriority(ctx context.Context, eid types.EntityID, priority int) error {
	l, corrID := h.requestLogger()
	if err := h.reg.SetEntityPriority(eid, priority); err != nil {
		l.Error().Err(err).Uint64("entity_id", uint64(eid)).Msg("set_entity_priority failed")
		return fmt.Errorf("request %s: %w", corrID, err)
	}
	l.Info().Uint64("entity_id", uint64(eid)).Int("priority", priority).Msg("set_entity_priority")
	return nil
}

// LoadModel binds a compiled model and its timing/power profile to an
// entity at a fixed target frequency.
func (h *Handlers) LoadModel(ctx context.Context, modelPath, profilePath string, eid types.EntityID, freq types.Frequency) (types.ModelID, error) {
	l, corrID := h.requestLogger()
	mid, err := h.reg.LoadModel(modelPath, profilePath, eid, freq)
	if err != nil {
		l.Error().Err(err).Uint64("entity_id", uint64(eid)).Msg("load_model failed")
		return 0, fmt.Errorf("request %s: %w", corrID, err)
	}
	l.Info().Uint64("model_id", uint64(mid)).Uint64("entity_id", uint64(eid)).Msg("load_model")
	return mid, nil
}

// Infer submits one inference task against a loaded model and blocks
// until it finishes or ctx is cancelled, returning the completed task's
// accounting snapshot.
func (h *Handlers) Infer(ctx context.Context, mid types.ModelID) (task.Snapshot, error) {
	l, corrID := h.requestLogger()
	t, err := h.reg.NewTask(mid)
	if err != nil {
		l.Error().Err(err).Uint64("model_id", uint64(mid)).Msg("infer: submission failed")
		return task.Snapshot{}, fmt.Errorf("request %s: %w", corrID, err)
	}
	l.Debug().Uint64("task_id", uint64(t.ID)).Msg("infer: submitted, waiting")

	if err := t.Wait(ctx); err != nil {
		l.Warn().Err(err).Uint64("task_id", uint64(t.ID)).Msg("infer: wait cancelled")
		return task.Snapshot{}, fmt.Errorf("request %s: %w", corrID, err)
	}
	snap := t.Snapshot()
	l.Info().
		Uint64("task_id", uint64(snap.ID)).
		Dur("service_time", snap.ServiceTime).
		Float64("energy_used_uj", snap.EnergyUsedU).
		Msg("infer: finished")
	return snap, nil
}
