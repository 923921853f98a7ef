package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cliquesaude",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	appointmentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cliquesaude",
			Name:      "appointments_created_total",
			Help:      "Appointments successfully written.",
		},
	)

	appointmentItems = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cliquesaude",
			Name:      "appointment_items_total",
			Help:      "Appointment items successfully written.",
		},
	)

	bookingFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cliquesaude",
			Name:      "booking_failures_total",
			Help:      "Booking write failures by step.",
		},
		[]string{"step"},
	)

	compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cliquesaude",
			Name:      "booking_compensations_total",
			Help:      "Compensating deletes by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			appointmentsCreated,
			appointmentItems,
			bookingFailures,
			compensations,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncAppointmentsCreated() {
	appointmentsCreated.Inc()
}

func AddAppointmentItems(n int) {
	appointmentItems.Add(float64(n))
}

// IncBookingFailure counts a failed write by saga step ("appointment" or "items").
func IncBookingFailure(step string) {
	bookingFailures.WithLabelValues(step).Inc()
}

// IncCompensation counts a compensating delete by outcome
// ("compensated" or "uncompensated").
func IncCompensation(outcome string) {
	compensations.WithLabelValues(outcome).Inc()
}
