package metrics

import (
	"net/http"
	"strconv"
	"time"

	"clarity-storefront/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Prometheus implements ports.CheckoutMetrics and records HTTP traffic.
// Each instance owns its registry so tests can build as many as they like.
type Prometheus struct {
	registry    *prometheus.Registry
	checkouts   *prometheus.CounterVec
	checkoutDur *prometheus.HistogramVec
	warnings    *prometheus.CounterVec
	ethUsdPrice prometheus.Gauge
	requests    *prometheus.CounterVec
	requestDur  *prometheus.HistogramVec
}

// NewPrometheus creates the collectors under namespace and registers them.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "storefront"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout runs by final state and error code.",
		}, []string{"state", "error_code"}),
		checkoutDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Wall time of checkout runs, including the receipt wait.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 180},
		}, []string{"state"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_payment_warnings_total",
			Help:      "Best-effort steps that failed after a confirmed payment.",
		}, []string{"step"}),
		ethUsdPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eth_usd_price",
			Help:      "Last ETH/USD price read from the oracle.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	p.registry.MustRegister(
		p.checkouts, p.checkoutDur, p.warnings, p.ethUsdPrice, p.requests, p.requestDur,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// CheckoutFinished counts a run that reached a terminal state.
func (p *Prometheus) CheckoutFinished(state domain.CheckoutState, errorCode string, elapsed time.Duration) {
	p.checkouts.WithLabelValues(string(state), errorCode).Inc()
	p.checkoutDur.WithLabelValues(string(state)).Observe(elapsed.Seconds())
}

// PostPaymentWarning counts a failed best-effort step.
func (p *Prometheus) PostPaymentWarning(step string) {
	p.warnings.WithLabelValues(step).Inc()
}

// PriceObserved records the latest oracle price.
func (p *Prometheus) PriceObserved(price decimal.Decimal) {
	p.ethUsdPrice.Set(price.InexactFloat64())
}

// ObserveHTTP records one served request.
func (p *Prometheus) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	p.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.requestDur.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
