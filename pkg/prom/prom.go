// Package prom holds the delivery metrics. Every recorder is a no-op until
// Create has run, so library code and tests can call them unconditionally.
package prom

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	xhttp "github.com/nimasrn/church-messaging/pkg/http"
	"github.com/nimasrn/church-messaging/pkg/logger"
)

const (
	SystemDelivery = "delivery"
	SystemWorker   = "worker"
)

type metrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	smsSegments      prometheus.Counter

	cycleDuration      prometheus.Histogram
	schedulesClaimed   prometheus.Counter
	schedulesClaimLost prometheus.Counter
	scheduleErrors     prometheus.Counter
	schedulesRecovered prometheus.Counter
}

var (
	mu      sync.RWMutex
	current *metrics
)

// Create registers every series under namespace with env and instance as
// constant labels. Calling it again replaces the previous set.
func Create(host, env, namespace string) error {
	labels := prometheus.Labels{"env": env, "instance": host}
	opts := func(subsystem, name string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        subsystem + " " + strings.ReplaceAll(name, "_", " "),
			ConstLabels: labels,
		}
	}
	counter := func(subsystem, name string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts(opts(subsystem, name)))
	}
	histogram := func(subsystem, name string) prometheus.HistogramOpts {
		o := opts(subsystem, name)
		return prometheus.HistogramOpts{
			Namespace: o.Namespace, Subsystem: o.Subsystem, Name: o.Name,
			Help: o.Help, ConstLabels: o.ConstLabels, Buckets: prometheus.DefBuckets,
		}
	}

	m := &metrics{
		registry:         prometheus.NewRegistry(),
		dispatchTotal:    prometheus.NewCounterVec(prometheus.CounterOpts(opts(SystemDelivery, "dispatch_total")), []string{"channel", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(histogram(SystemDelivery, "dispatch_duration_seconds"), []string{"channel"}),
		smsSegments:      counter(SystemDelivery, "sms_segments_total"),

		cycleDuration:      prometheus.NewHistogram(histogram(SystemWorker, "cycle_duration_seconds")),
		schedulesClaimed:   counter(SystemWorker, "schedules_claimed_total"),
		schedulesClaimLost: counter(SystemWorker, "schedules_claim_lost_total"),
		scheduleErrors:     counter(SystemWorker, "schedule_errors_total"),
		schedulesRecovered: counter(SystemWorker, "schedules_recovered_total"),
	}
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		m.dispatchTotal, m.dispatchDuration, m.smsSegments,
		m.cycleDuration, m.schedulesClaimed, m.schedulesClaimLost, m.scheduleErrors, m.schedulesRecovered,
	} {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}

	mu.Lock()
	current = m
	mu.Unlock()
	return nil
}

func get() *metrics {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ListenAndServer serves the registry on addr at url until the process exits.
func ListenAndServer(addr string, url string) {
	m := get()
	if m == nil {
		logger.Warn("[metrics-server] metrics not created, skipping")
		return
	}
	s := xhttp.CreateServer()
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

// ObserveDispatch records one dispatch attempt outcome and its latency.
func ObserveDispatch(channel, outcome string, seconds float64) {
	if m := get(); m != nil {
		m.dispatchTotal.WithLabelValues(channel, outcome).Inc()
		m.dispatchDuration.WithLabelValues(channel).Observe(seconds)
	}
}

func AddSMSSegments(n int) {
	if m := get(); m != nil {
		m.smsSegments.Add(float64(n))
	}
}

func ObserveCycle(seconds float64) {
	if m := get(); m != nil {
		m.cycleDuration.Observe(seconds)
	}
}

func ScheduleClaimed() {
	if m := get(); m != nil {
		m.schedulesClaimed.Inc()
	}
}

func ScheduleClaimLost() {
	if m := get(); m != nil {
		m.schedulesClaimLost.Inc()
	}
}

func ScheduleFailed() {
	if m := get(); m != nil {
		m.scheduleErrors.Inc()
	}
}

func SchedulesRecovered(n int64) {
	if m := get(); m != nil && n > 0 {
		m.schedulesRecovered.Add(float64(n))
	}
}
