package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"northpole/internal/domain"
	"northpole/internal/scheduler"
)

var (
	// Registry is the dedicated Prometheus registry for the workshop.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	AssignmentPasses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "workshop_assignment_passes_total", Help: "Scheduler passes run."},
	)
	// OrdersScheduled counts order outcomes per pass; an order left unassigned is counted again by every retry.
	OrdersScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "workshop_orders_scheduled_total", Help: "Orders handled by scheduler passes, by outcome."},
		[]string{"outcome"},
	)
	BuildEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "workshop_build_events_total", Help: "Simulated build events by elf and kind."},
		[]string{"elf", "kind"},
	)
	RouteDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "workshop_route_distance", Help: "Total length of planned delivery routes.", Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000}},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(AssignmentPasses)
		Registry.MustRegister(OrdersScheduled)
		Registry.MustRegister(BuildEvents)
		Registry.MustRegister(RouteDistance)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

func ObservePass(res scheduler.Result) {
	AssignmentPasses.Inc()
	OrdersScheduled.WithLabelValues("assigned").Add(float64(len(res.Assignments)))
	OrdersScheduled.WithLabelValues("unassigned").Add(float64(len(res.Unassigned)))
}

func ObserveEvent(ev domain.BuildEvent) {
	BuildEvents.WithLabelValues(ev.Elf, string(ev.Kind)).Inc()
}
