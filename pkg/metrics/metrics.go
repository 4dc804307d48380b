package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Entity/registry metrics
	EntitiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accelschd_entities_total",
			Help: "Total number of registered entities",
		},
	)

	ModelsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accelschd_models_total",
			Help: "Total number of loaded models",
		},
	)

	IndexedEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accelschd_indexed_entities",
			Help: "Number of entities currently in the virtual-time index",
		},
	)

	TotalWeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accelschd_total_weight",
			Help: "Sum of weights of entities currently in the virtual-time index",
		},
	)

	// Task metrics
	TasksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accelschd_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
	)

	TasksFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accelschd_tasks_finished_total",
			Help: "Total number of tasks that reached Finished",
		},
	)

	KernelsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accelschd_kernels_dispatched_total",
			Help: "Total number of kernels dispatched, by entity",
		},
		[]string{"entity_id"},
	)

	// Scheduler loop metrics
	QuantumDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accelschd_quantum_duration_seconds",
			Help:    "Wall-clock duration of one scheduler-loop quantum",
			Buckets: prometheus.DefBuckets,
		},
	)

	SliceAllocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accelschd_slice_allocation_duration_seconds",
			Help:    "Time taken to recompute slices across runnable entities",
			Buckets: prometheus.DefBuckets,
		},
	)

	EnergyConsumedMicrojoules = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accelschd_energy_consumed_microjoules_total",
			Help: "Cumulative energy accounted per entity, in microjoules",
		},
		[]string{"entity_id"},
	)

	// Frequency-controller metrics
	FrequencyTransitions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accelschd_frequency_transitions_total",
			Help: "Total number of DVFS target-frequency changes requested",
		},
	)

	CurrentFrequencyHz = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accelschd_current_frequency_hz",
			Help: "Last-observed accelerator frequency in Hz",
		},
	)

	GPUPowerMilliwatts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accelschd_gpu_power_milliwatts",
			Help: "Last-sampled instantaneous accelerator power draw",
		},
	)
)

func init() {
	prometheus.MustRegister(EntitiesTotal)
	prometheus.MustRegister(ModelsTotal)
	prometheus.MustRegister(IndexedEntities)
	prometheus.MustRegister(TotalWeight)
	prometheus.MustRegister(TasksSubmitted)
	prometheus.MustRegister(TasksFinished)
	prometheus.MustRegister(KernelsDispatched)
	prometheus.MustRegister(QuantumDuration)
	prometheus.MustRegister(SliceAllocationDuration)
	prometheus.MustRegister(EnergyConsumedMicrojoules)
	prometheus.MustRegister(FrequencyTransitions)
	prometheus.MustRegister(CurrentFrequencyHz)
	prometheus.MustRegister(GPUPowerMilliwatts)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
