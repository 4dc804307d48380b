// Package sched implements the scheduler loop: pick the min-vruntime
// entity, dispatch its head task's kernels until the slice is exhausted
// or the task completes, account time and energy, advance vruntime, and
// reinsert or evict the entity from the virtual-time index.
package sched

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/accelschd/pkg/log"
	"github.com/cuemby/accelschd/pkg/metrics"
	"github.com/cuemby/accelschd/pkg/registry"
	"github.com/cuemby/accelschd/pkg/types"
)

// FrequencyController is the subset of pkg/freqctl.Controller the
// scheduler loop depends on.
type FrequencyController interface {
	GetFrequency() types.Frequency
	SetCurFrequency(freq types.Frequency)
}

// idleBackoff is how long the loop sleeps when the index is empty. An
// empty index must make no incorrect progress; a short sleep is the
// simplest correct choice.
const idleBackoff = time.Millisecond

// Scheduler runs the dedicated scheduler goroutine.
type Scheduler struct {
	reg *registry.Registry
	ctl FrequencyController

	logger zerolog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Scheduler over a Registry and a FrequencyController.
func New(reg *registry.Registry, ctl FrequencyController) *Scheduler {
	return &Scheduler{
		reg:    reg,
		ctl:    ctl,
		logger: log.WithComponent("scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler loop on a dedicated goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop sets the shutdown flag; the loop observes it between iterations
// and returns. In-flight kernels are allowed to finish: Stop does not
// interrupt a quantum already in progress.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		if !s.runQuantum() {
			time.Sleep(idleBackoff)
		}
	}
}

// runQuantum executes one iteration of the loop. It returns false if the
// index was empty (no work to do this iteration).
func (s *Scheduler) runQuantum() bool {
	eid, vruntime, ok := s.reg.Index().Min()
	if !ok {
		return false
	}
	e, err := s.reg.GetEntity(eid)
	if err != nil {
		// Entity vanished between reading the index and looking it up;
		// nothing for this iteration to do.
		return false
	}

	timer := metrics.NewTimer()
	quantumStart := time.Now()
	q := e.Snapshot().SchedSlice

	var timeMeter time.Duration
	var energyMeter float64
	var lastModel *registry.Model

	for timeMeter < q {
		t, ok := e.Head()
		if !ok {
			break
		}

		if t.State() == types.Submitted {
			t.Start(time.Now())
		}

		m, err := s.reg.GetModel(t.ModelID)
		if err != nil {
			s.logger.Fatal().Err(err).Uint64("model_id", uint64(t.ModelID)).Msg("dispatched task references unknown model")
		}

		if s.ctl.GetFrequency() != m.Freq {
			s.ctl.SetCurFrequency(m.Freq)
			metrics.FrequencyTransitions.Inc()
		}

		kernelIdx := t.KernelIdx()
		serviceTime, energyUJ, err := m.Executor.ExecuteKernel(kernelIdx, m.Freq)
		if err != nil {
			s.logger.Fatal().Err(err).
				Uint64("task_id", uint64(t.ID)).
				Int("kernel_idx", kernelIdx).
				Msg("kernel dispatch failed")
		}
		t.RecordKernel(serviceTime, energyUJ)
		timeMeter += serviceTime
		energyMeter += energyUJ
		lastModel = m

		entityLabel := fmt.Sprintf("%d", eid)
		metrics.KernelsDispatched.WithLabelValues(entityLabel).Inc()
		metrics.EnergyConsumedMicrojoules.WithLabelValues(entityLabel).Add(energyUJ)

		if t.KernelIdx() == m.NumKernels {
			if err := m.Executor.Sync(); err != nil {
				s.logger.Fatal().Err(err).Uint64("task_id", uint64(t.ID)).Msg("device sync failed")
			}
			t.Finish(time.Now())
			e.PopHead()
			metrics.TasksFinished.Inc()
		}
	}

	// Flush any in-flight asynchronous kernel dispatches from the last
	// touched model before accounting.
	if lastModel != nil {
		if err := lastModel.Executor.Sync(); err != nil {
			s.logger.Fatal().Err(err).Msg("final device sync failed")
		}
	}

	if e.QueueLen() > 0 {
		progress := 0.0
		if q > 0 {
			progress = float64(timeMeter) / float64(q)
		}
		s.reg.IndexEntityAndSetVRuntime(eid, vruntime+progress)
	} else {
		s.reg.OnQueueDrained(eid)
	}
	s.reg.AccumulateRuntime(eid, time.Since(quantumStart))

	timer.ObserveDuration(metrics.QuantumDuration)
	_ = energyMeter
	return true
}
