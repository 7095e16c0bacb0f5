// Package metrics exposes Prometheus counters and gauges for the purchase
// engine, inference engine, and audit validator: a small registry
// of named gauges/counters, optionally served over HTTP via promhttp.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collector tracks the counters and gauges surfaced by the engines in
// this module: purchase stage transitions, peer failures, and audit
// disagreements.
type Collector struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	log      *logrus.Logger

	purchaseStageTotal   *prometheus.CounterVec
	peerFailureTotal     *prometheus.CounterVec
	auditDisagreementTotal *prometheus.CounterVec
	inflightPurchases    prometheus.Gauge
}

// New builds a Collector and registers every metric with a fresh
// Prometheus registry.
func New(log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		log:      log,
		purchaseStageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastelclient_purchase_stage_total",
			Help: "Count of credit-pack purchase state-machine transitions, by stage.",
		}, []string{"stage"}),
		peerFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastelclient_peer_failure_total",
			Help: "Count of peer failures observed by engines, by endpoint.",
		}, []string{"endpoint"}),
		auditDisagreementTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastelclient_audit_disagreement_total",
			Help: "Count of audit-validator field disagreements between a responder's claim and auditor majority, by field.",
		}, []string{"field"}),
		inflightPurchases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pastelclient_inflight_purchases",
			Help: "Number of credit-pack purchase operations currently in flight.",
		}),
	}
	reg.MustRegister(c.purchaseStageTotal, c.peerFailureTotal, c.auditDisagreementTotal, c.inflightPurchases)
	return c
}

// ObservePurchaseStage increments the counter for stage.
func (c *Collector) ObservePurchaseStage(stage string) {
	c.purchaseStageTotal.WithLabelValues(stage).Inc()
}

// ObservePeerFailure increments the failure counter for endpoint.
func (c *Collector) ObservePeerFailure(endpoint string) {
	c.peerFailureTotal.WithLabelValues(endpoint).Inc()
}

// ObserveAuditDisagreement increments the disagreement counter for field.
func (c *Collector) ObserveAuditDisagreement(field string) {
	c.auditDisagreementTotal.WithLabelValues(field).Inc()
}

// PurchaseStarted/PurchaseFinished track in-flight purchase operations.
func (c *Collector) PurchaseStarted() { c.inflightPurchases.Inc() }
func (c *Collector) PurchaseFinished() { c.inflightPurchases.Dec() }

// StartServer exposes /metrics on addr, mirroring HealthLogger's
// StartMetricsServer. The caller owns the returned server's lifecycle.
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.mu.Lock()
			c.log.WithFields(logrus.Fields{"error": err}).Error("metrics server stopped")
			c.mu.Unlock()
		}
	}()
	return srv
}

// Shutdown gracefully stops a server started by StartServer.
func (c *Collector) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
