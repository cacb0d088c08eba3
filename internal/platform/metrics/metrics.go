// Package metrics holds the Prometheus collectors for HTTP traffic and the
// clinic workflows. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "clinic"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	appointmentsBooked *prometheus.CounterVec
	servicesCreated    prometheus.Counter
	servicesConfirmed  prometheus.Counter
	treatmentLogs      prometheus.Counter
	vouchersCreated    prometheus.Counter
	voucherAmount      prometheus.Counter
	workflowErrors     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		appointmentsBooked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_booked_total",
			Help:      "Appointments booked, by initial status.",
		}, []string{"status"}),
		servicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consulted_services_created_total",
			Help:      "Consulted service lines created.",
		}),
		servicesConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consulted_services_confirmed_total",
			Help:      "Consulted service lines confirmed.",
		}),
		treatmentLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "treatment_logs_created_total",
			Help:      "Treatment log entries appended.",
		}),
		vouchersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_vouchers_created_total",
			Help:      "Payment vouchers created.",
		}),
		voucherAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_voucher_amount_total",
			Help:      "Sum of created voucher totals in currency units.",
		}),
		workflowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_errors_total",
			Help:      "Workflow errors returned to clients, by code.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.appointmentsBooked, m.servicesCreated, m.servicesConfirmed,
		m.treatmentLogs, m.vouchersCreated, m.voucherAmount, m.workflowErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) AppointmentBooked(status string) {
	if m == nil {
		return
	}
	m.appointmentsBooked.WithLabelValues(status).Inc()
}

func (m *Metrics) ServiceCreated() {
	if m == nil {
		return
	}
	m.servicesCreated.Inc()
}

func (m *Metrics) ServiceConfirmed() {
	if m == nil {
		return
	}
	m.servicesConfirmed.Inc()
}

func (m *Metrics) TreatmentLogCreated() {
	if m == nil {
		return
	}
	m.treatmentLogs.Inc()
}

func (m *Metrics) VoucherCreated(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.vouchersCreated.Inc()
	m.voucherAmount.Add(total.InexactFloat64())
}

func (m *Metrics) WorkflowError(code string) {
	if m == nil {
		return
	}
	m.workflowErrors.WithLabelValues(code).Inc()
}
