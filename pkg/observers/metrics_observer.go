package observers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anggasct/hsm"
)

const (
	namespace = "hsm"
)

// Collectors groups the Prometheus collectors shared by every MetricsObserver
// registered on the same registry
type Collectors struct {
	Steps       *prometheus.CounterVec
	Guards      *prometheus.CounterVec
	Entries     *prometheus.CounterVec
	Exceptions  *prometheus.CounterVec
	Current     *prometheus.GaugeVec
	CycleLength *prometheus.HistogramVec
}

// NewCollectors creates and registers the collectors on reg
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of published steps by kind",
			},
			[]string{"machine", "kind"},
		),
		Guards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_evaluations_total",
				Help:      "Total number of guard evaluations by result",
			},
			[]string{"machine", "result"},
		),
		Entries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_entries_total",
				Help:      "Total number of times a state was entered",
			},
			[]string{"machine", "state"},
		),
		Exceptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exceptions_total",
				Help:      "Total number of errors caught from user code by source",
			},
			[]string{"machine", "source"},
		),
		Current: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_state",
				Help:      "Numeric value of the state the machine settled in",
			},
			[]string{"machine"},
		),
		CycleLength: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Time from the first step of a fire cycle to its stationary step",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"machine"},
		),
	}
}

// MetricsObserver collects metrics about state machine execution
type MetricsObserver[S hsm.State] struct {
	machine    string
	collectors *Collectors

	mutex            sync.RWMutex
	stateVisits      map[S]int
	transitionCounts map[string]int
	errorCount       int
	cycleStart       map[uuid.UUID]time.Time
	lastFrom         S
	now              func() time.Time
}

// NewMetricsObserver creates a new metrics observer for the named machine
func NewMetricsObserver[S hsm.State](collectors *Collectors, machine string) *MetricsObserver[S] {
	return &MetricsObserver[S]{
		machine:          machine,
		collectors:       collectors,
		stateVisits:      make(map[S]int),
		transitionCounts: make(map[string]int),
		cycleStart:       make(map[uuid.UUID]time.Time),
		now:              time.Now,
	}
}

// OnStep records step metrics
func (o *MetricsObserver[S]) OnStep(step hsm.Step[S]) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	cycle := step.Header().Cycle
	if _, ok := o.cycleStart[cycle]; !ok {
		o.cycleStart[cycle] = o.now()
	}
	o.collectors.Steps.WithLabelValues(o.machine, step.Kind().String()).Inc()

	switch s := step.(type) {
	case *hsm.GuardEvaluated[S]:
		o.collectors.Guards.WithLabelValues(o.machine, fmt.Sprint(s.Result)).Inc()
	case *hsm.PathStep[S]:
		if s.IsEntry {
			o.stateVisits[s.Target]++
			o.collectors.Entries.WithLabelValues(o.machine, fmt.Sprint(s.Target)).Inc()
		}
	case *hsm.ActionExecuted[S]:
		o.lastFrom = s.Target
	case *hsm.StationaryReached[S]:
		if s.Target != o.lastFrom {
			o.transitionCounts[fmt.Sprintf("%v->%v", o.lastFrom, s.Target)]++
		}
		o.collectors.Current.WithLabelValues(o.machine).Set(float64(s.Target))
		o.collectors.CycleLength.WithLabelValues(o.machine).Observe(o.now().Sub(o.cycleStart[cycle]).Seconds())
		delete(o.cycleStart, cycle)
	}
}

// OnException records error metrics
func (o *MetricsObserver[S]) OnException(ex hsm.ExceptionEvent[S]) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.errorCount++
	o.collectors.Exceptions.WithLabelValues(o.machine, ex.Source.String()).Inc()
}

// GetStateVisitCounts returns the number of times each state was entered
func (o *MetricsObserver[S]) GetStateVisitCounts() map[S]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[S]int, len(o.stateVisits))
	for state, count := range o.stateVisits {
		result[state] = count
	}
	return result
}

// GetTransitionCounts returns the number of times each "from->to" transition settled
func (o *MetricsObserver[S]) GetTransitionCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]int, len(o.transitionCounts))
	for transition, count := range o.transitionCounts {
		result[transition] = count
	}
	return result
}

// GetErrorCount returns the number of published exceptions
func (o *MetricsObserver[S]) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.errorCount
}

// Reset resets the in-memory counters. Prometheus collectors are not reset.
func (o *MetricsObserver[S]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.stateVisits = make(map[S]int)
	o.transitionCounts = make(map[string]int)
	o.errorCount = 0
	o.cycleStart = make(map[uuid.UUID]time.Time)
}
