package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Fan-out metrics
	NotificationsCreated prometheus.Counter
	FanoutRecipients     prometheus.Histogram
	FanoutDuration       prometheus.Histogram

	// Delivery metrics, labelled by channel and outcome
	DeliveryAttempts *prometheus.CounterVec

	// Deadline reminder metrics
	RemindersSent   prometheus.Counter
	RemindersFailed prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of notification records persisted",
		}),
		FanoutRecipients: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_recipients",
			Help:      "Resolved recipient count per fan-out event",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		FanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_duration_seconds",
			Help:      "Time spent fanning out one event",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		DeliveryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Total number of delivery attempts",
		}, []string{"channel", "status"}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_reminders_sent_total",
			Help:      "Total number of deadline reminders created",
		}),
		RemindersFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_reminders_failed_total",
			Help:      "Total number of deadline reminder failures",
		}),
	}
}

// NewTestMetrics creates an unregistered metrics bundle for tests.
func NewTestMetrics() *Metrics {
	return &Metrics{
		NotificationsCreated: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_notifications_created_total"}),
		FanoutRecipients:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_fanout_recipients"}),
		FanoutDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_fanout_duration_seconds"}),
		DeliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_delivery_attempts_total",
		}, []string{"channel", "status"}),
		RemindersSent:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_deadline_reminders_sent_total"}),
		RemindersFailed: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_deadline_reminders_failed_total"}),
	}
}
