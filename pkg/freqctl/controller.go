// Package freqctl implements the frequency-controller worker (§4.1): a
// safe, serialised way to drive the accelerator's DVFS governor. Writing
// min_freq and max_freq in the wrong order can cross the interval and be
// rejected by the kernel, so a single dedicated worker goroutine owns the
// write ordering.
package freqctl

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/accelschd/pkg/log"
	"github.com/cuemby/accelschd/pkg/types"
)

// freqGreater compares two frequency strings numerically (sysfs reports
// frequencies in Hz); it falls back to a lexical comparison for governors
// that report non-numeric operating-point labels.
func freqGreater(a, b types.Frequency) bool {
	ai, aerr := strconv.ParseInt(string(a), 10, 64)
	bi, berr := strconv.ParseInt(string(b), 10, 64)
	if aerr == nil && berr == nil {
		return ai > bi
	}
	return a > b
}

// Controller serialises DVFS writes behind a target/current pair reconciled
// by one worker goroutine, woken by a sync.Cond the direct way the spec's
// mutex+condvar pair translates into Go.
type Controller struct {
	gov Governor

	mu       sync.Mutex
	cond     *sync.Cond
	cur      types.Frequency
	target   types.Frequency
	shutdown bool

	freqToIdx map[types.Frequency]int
	idxToFreq []types.Frequency

	logger zerolog.Logger
	wg     sync.WaitGroup
}

// New constructs a Controller. Construction fails with ErrNoPrivilege if
// the process cannot write the governor's min/max endpoints, and with
// ErrFail if the available-frequency enumeration cannot be read.
func New(gov Governor) (*Controller, error) {
	freqs, err := gov.ReadAvailableFrequencies()
	if err != nil {
		return nil, fmt.Errorf("%w: reading available frequencies: %v", types.ErrFail, err)
	}
	if fg, ok := gov.(*FileGovernor); ok {
		if err := probeWritable(fg.MinFreqPath); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrNoPrivilege, err)
		}
		if err := probeWritable(fg.MaxFreqPath); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrNoPrivilege, err)
		}
	}

	cur, err := gov.ReadCurFreq()
	if err != nil {
		return nil, fmt.Errorf("%w: reading current frequency: %v", types.ErrFail, err)
	}

	c := &Controller{
		gov:       gov,
		cur:       types.Frequency(cur),
		target:    types.Frequency(cur),
		freqToIdx: make(map[types.Frequency]int, len(freqs)),
		idxToFreq: make([]types.Frequency, len(freqs)),
		logger:    log.WithComponent("freqctl"),
	}
	c.cond = sync.NewCond(&c.mu)
	for i, f := range freqs {
		freq := types.Frequency(f)
		c.freqToIdx[freq] = i
		c.idxToFreq[i] = freq
	}

	c.wg.Add(1)
	go c.run()
	return c, nil
}

// GetFrequency returns the last-requested target frequency. Per Design
// Notes §9, this is the target, not a fresh hardware read; the scheduler
// consults the profile at the target regardless.
func (c *Controller) GetFrequency() types.Frequency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetCurFrequency requests a new target frequency. Idempotent, and never
// blocks on the actual hardware write — it wakes the worker and returns.
func (c *Controller) SetCurFrequency(freq types.Frequency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == freq {
		return
	}
	c.target = freq
	c.cond.Signal()
}

// SetCurFrequencyByIndex requests the frequency at position i in the
// available-frequency list.
func (c *Controller) SetCurFrequencyByIndex(i int) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.idxToFreq) {
		c.mu.Unlock()
		return types.ErrNotFound
	}
	freq := c.idxToFreq[i]
	c.mu.Unlock()
	c.SetCurFrequency(freq)
	return nil
}

// IndexOf returns the position of freq in the available-frequency list.
func (c *Controller) IndexOf(freq types.Frequency) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.freqToIdx[freq]
	if !ok {
		return 0, types.ErrNotFound
	}
	return i, nil
}

// FrequencyAt returns the frequency at position i in the available list.
func (c *Controller) FrequencyAt(i int) (types.Frequency, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.idxToFreq) {
		return "", types.ErrNotFound
	}
	return c.idxToFreq[i], nil
}

// AvailableFrequencies returns the governor's enumeration, read once at
// construction.
func (c *Controller) AvailableFrequencies() []types.Frequency {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Frequency, len(c.idxToFreq))
	copy(out, c.idxToFreq)
	return out
}

// GetGPUPower reads the current instantaneous power sensor, in milliwatts.
func (c *Controller) GetGPUPower() (float64, error) {
	return c.gov.ReadPowerMW()
}

// Shutdown signals the worker and joins it.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.cond.Signal()
	c.mu.Unlock()
	c.wg.Wait()
}

// run is the worker: suspend until the target changes or shutdown, then
// reconcile current -> target in the order that never inverts [min, max].
func (c *Controller) run() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		for c.target == c.cur && !c.shutdown {
			c.cond.Wait()
		}
		if c.shutdown {
			c.mu.Unlock()
			return
		}
		target := c.target
		cur := c.cur
		c.mu.Unlock()

		if err := c.reconcile(cur, target); err != nil {
			// Hot-path frequency failures are asserted: the scheduler
			// cannot proceed correctly running at the wrong frequency.
			c.logger.Fatal().Err(err).Str("target", string(target)).Msg("frequency reconciliation failed")
		}
	}
}

func (c *Controller) reconcile(cur, target types.Frequency) error {
	var err error
	if freqGreater(target, cur) {
		if err = c.gov.WriteMaxFreq(string(target)); err != nil {
			return err
		}
		if err = c.gov.WriteMinFreq(string(target)); err != nil {
			return err
		}
	} else {
		if err = c.gov.WriteMinFreq(string(target)); err != nil {
			return err
		}
		if err = c.gov.WriteMaxFreq(string(target)); err != nil {
			return err
		}
	}

	observed, err := c.gov.ReadCurFreq()
	if err != nil {
		return err
	}
	if types.Frequency(observed) != target {
		return fmt.Errorf("governor reports %s after requesting %s", observed, target)
	}

	c.mu.Lock()
	c.cur = types.Frequency(observed)
	c.mu.Unlock()
	return nil
}
