// Package metrics exports sharing activity to Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/sharebot/internal/media"
)

// Redemption outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomePartial   = "partial"
	OutcomeNotFound  = "not_found"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
)

// Observer receives domain events worth counting.
type Observer interface {
	SessionItem(kind media.Kind)
	BundleCreated(files int, duration time.Duration)
	FinalizeFailed(reason string)
	Redeemed(outcome string)
	DeliveryFailures(n int)
	PendingDeletions(n int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) SessionItem(media.Kind) {}
func (Nop) BundleCreated(int, time.Duration) {}
func (Nop) FinalizeFailed(string) {}
func (Nop) Redeemed(string) {}
func (Nop) DeliveryFailures(int) {}
func (Nop) PendingDeletions(int) {}

// PrometheusObserver implements Observer with Prometheus collectors.
type PrometheusObserver struct {
	sessionItems     *prometheus.CounterVec
	bundlesCreated   prometheus.Counter
	finalizeFailures *prometheus.CounterVec
	redemptions      *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	pendingDeletions prometheus.Gauge
	finalizeDuration prometheus.Histogram
	outboundJobs     *prometheus.CounterVec
	outboundRetries  prometheus.Counter
}

// NewPrometheusObserver registers the bot's collectors on reg, reusing collectors
// that are already registered.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "sharebot"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		sessionItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_items_total",
			Help:      "Media items received into upload sessions.",
		}, []string{"kind"}),
		bundlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_created_total",
			Help:      "Bundles created from finalized uploads.",
		}),
		finalizeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_failures_total",
			Help:      "Uploads that could not be turned into a bundle.",
		}, []string{"reason"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Share link redemptions by outcome.",
		}, []string{"outcome"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Files skipped during delivery after retries.",
		}),
		pendingDeletions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_deletions",
			Help:      "Scheduled deletions of delivered messages.",
		}),
		finalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_seconds",
			Help:      "Time spent downloading and persisting an upload.",
			Buckets:   prometheus.DefBuckets,
		}),
		outboundJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_jobs_total",
			Help:      "Queued Bot API calls by action and result.",
		}, []string{"action", "outcome"}),
		outboundRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_retries_total",
			Help:      "Extra attempts made for queued Bot API calls.",
		}),
	}

	var err error
	if o.sessionItems, err = register(reg, o.sessionItems); err != nil {
		return nil, err
	}
	if o.bundlesCreated, err = register(reg, o.bundlesCreated); err != nil {
		return nil, err
	}
	if o.finalizeFailures, err = register(reg, o.finalizeFailures); err != nil {
		return nil, err
	}
	if o.redemptions, err = register(reg, o.redemptions); err != nil {
		return nil, err
	}
	if o.deliveryFailures, err = register(reg, o.deliveryFailures); err != nil {
		return nil, err
	}
	if o.pendingDeletions, err = register(reg, o.pendingDeletions); err != nil {
		return nil, err
	}
	if o.finalizeDuration, err = register(reg, o.finalizeDuration); err != nil {
		return nil, err
	}
	if o.outboundJobs, err = register(reg, o.outboundJobs); err != nil {
		return nil, err
	}
	if o.outboundRetries, err = register(reg, o.outboundRetries); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) SessionItem(kind media.Kind) {
	o.sessionItems.WithLabelValues(string(kind)).Inc()
}

func (o *PrometheusObserver) BundleCreated(_ int, duration time.Duration) {
	o.bundlesCreated.Inc()
	o.finalizeDuration.Observe(duration.Seconds())
}

func (o *PrometheusObserver) FinalizeFailed(reason string) {
	o.finalizeFailures.WithLabelValues(reason).Inc()
}

func (o *PrometheusObserver) Redeemed(outcome string) {
	o.redemptions.WithLabelValues(outcome).Inc()
}

func (o *PrometheusObserver) DeliveryFailures(n int) {
	if n > 0 {
		o.deliveryFailures.Add(float64(n))
	}
}

func (o *PrometheusObserver) PendingDeletions(n int) {
	o.pendingDeletions.Set(float64(n))
}

// JobDone counts a finished outbound job. It satisfies the sender's observer.
func (o *PrometheusObserver) JobDone(action string, attempts int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	o.outboundJobs.WithLabelValues(action, outcome).Inc()
	if attempts > 1 {
		o.outboundRetries.Add(float64(attempts - 1))
	}
}

var (
	_ Observer = Nop{}
	_ Observer = (*PrometheusObserver)(nil)
)
