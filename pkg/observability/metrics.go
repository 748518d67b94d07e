package observability

import (
	"context"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dialogue collectors.
type Metrics struct {
	StateVisits  *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	TaskFailures *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	Silences     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceloop_state_visits_total",
				Help: "Total number of state entries",
			},
			[]string{"state"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voiceloop_task_duration_seconds",
				Help:    "Duration of interpretation tasks",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"kind"},
		),
		TaskFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceloop_task_failures_total",
				Help: "Total number of failed interpretation tasks",
			},
			[]string{"kind"},
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceloop_events_dropped_total",
				Help: "Events ignored by the dialogue (unhandled or dead letters)",
			},
			[]string{"event"},
		),
		Silences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voiceloop_no_input_total",
			Help: "Total number of no-input prompts",
		}),
	}
	reg.MustRegister(m.StateVisits, m.TaskDuration, m.TaskFailures, m.Dropped, m.Silences)
	return m
}

// Hooks records every lifecycle notification.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	noInput := domain.AtNoInput.String()
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateVisits.WithLabelValues(e.State).Inc()
			if e.State == noInput {
				m.Silences.Inc()
			}
		},
		OnTaskReturn: func(_ context.Context, e *domain.TaskEvent) {
			m.TaskDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.TaskFailures.WithLabelValues(string(e.Kind)).Inc()
			}
		},
		OnEventDropped: func(_ context.Context, e *domain.DropEvent) {
			m.Dropped.WithLabelValues(string(e.Event)).Inc()
		},
	}
}
