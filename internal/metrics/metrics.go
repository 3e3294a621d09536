// Package metrics exposes Prometheus instrumentation for the calendar service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/personal-calendar/internal/application"
)

const namespace = "calendar"

// Metrics owns a registry and every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry
	now      func() time.Time

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.SummaryVec
	providerCalls   *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncEvents      *prometheus.CounterVec
	lastSyncSuccess prometheus.Gauge
	mailDeliveries  *prometheus.CounterVec
	mailQueueDepth  prometheus.Gauge
}

// New registers the service collectors plus the Go and process collectors on
// a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  namespace,
		Name:       "http_request_duration_seconds",
		Help:       "Time spent serving HTTP requests",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"route"})
	m.providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Calendar provider calls by operation and outcome",
	}, []string{"operation", "outcome"})
	m.syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Inbound sync runs by outcome",
	}, []string{"outcome"})
	m.syncEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_events_total",
		Help:      "Remote events handled by inbound sync, by result",
	}, []string{"result"})
	m.lastSyncSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful inbound sync",
	})
	m.mailDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_deliveries_total",
		Help:      "Invitation mails by outcome",
	}, []string{"outcome"})
	m.mailQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Invitation mails waiting for delivery",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.providerCalls,
		m.syncRuns, m.syncEvents, m.lastSyncSuccess,
		m.mailDeliveries, m.mailQueueDepth,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveSync implements application.SyncObserver.
func (m *Metrics) ObserveSync(result application.SyncResult, err error) {
	if err != nil {
		m.syncRuns.WithLabelValues("error").Inc()
		return
	}
	m.syncRuns.WithLabelValues("success").Inc()
	m.syncEvents.WithLabelValues("created").Add(float64(result.Created))
	m.syncEvents.WithLabelValues("updated").Add(float64(result.Updated))
	m.syncEvents.WithLabelValues("skipped").Add(float64(result.Skipped))
	m.syncEvents.WithLabelValues("failed").Add(float64(result.Failed))
	m.lastSyncSuccess.Set(float64(m.now().Unix()))
}

// ObserveDelivery counts one mail outcome.
func (m *Metrics) ObserveDelivery(outcome string) {
	m.mailDeliveries.WithLabelValues(outcome).Inc()
}

// ObserveQueueDepth records the current mail queue depth.
func (m *Metrics) ObserveQueueDepth(depth int) {
	m.mailQueueDepth.Set(float64(depth))
}

// InstrumentProviders wraps factory so every provider call is counted.
func (m *Metrics) InstrumentProviders(factory application.ProviderFactory) application.ProviderFactory {
	if factory == nil {
		return nil
	}
	return application.ProviderFactoryFunc(func(ctx context.Context, credential string) (application.CalendarProvider, error) {
		provider, err := factory.ForCredential(ctx, credential)
		if err != nil {
			m.providerCalls.WithLabelValues("connect", outcome(err)).Inc()
			return nil, err
		}
		return &instrumentedProvider{next: provider, calls: m.providerCalls}, nil
	})
}

type instrumentedProvider struct {
	next  application.CalendarProvider
	calls *prometheus.CounterVec
}

func (p *instrumentedProvider) CreateEvent(ctx context.Context, event application.ProviderEvent) (string, error) {
	id, err := p.next.CreateEvent(ctx, event)
	p.calls.WithLabelValues("create", outcome(err)).Inc()
	return id, err
}

func (p *instrumentedProvider) UpdateEvent(ctx context.Context, providerEventID string, patch application.ProviderEventPatch) error {
	err := p.next.UpdateEvent(ctx, providerEventID, patch)
	p.calls.WithLabelValues("update", outcome(err)).Inc()
	return err
}

func (p *instrumentedProvider) DeleteEvent(ctx context.Context, providerEventID string) error {
	err := p.next.DeleteEvent(ctx, providerEventID)
	p.calls.WithLabelValues("delete", outcome(err)).Inc()
	return err
}

func (p *instrumentedProvider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]application.RemoteEvent, error) {
	events, err := p.next.ListEvents(ctx, timeMin, timeMax)
	p.calls.WithLabelValues("list", outcome(err)).Inc()
	return events, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
