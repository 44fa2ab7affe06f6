package plasmocore

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunMetrics exposes the per-kernel acceptance rate, the replica-exchange
// swap rate, and each chain's inverse temperature as Prometheus gauges, so a
// long-running chain can be watched from outside the process rather than
// only from the post-hoc CSV traces.
type RunMetrics struct {
	kernelAccept  *prometheus.GaugeVec
	swapAccept    prometheus.Gauge
	chainTemp     *prometheus.GaugeVec
	logLikelihood *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewRunMetrics builds a fresh registry holding this run's gauges; a fresh
// registry per run (rather than the global default one) keeps repeated
// construction in tests from panicking on duplicate registration.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &RunMetrics{
		registry: reg,
		kernelAccept: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plasmocore_kernel_acceptance_rate",
			Help: "Cumulative acceptance rate of each Metropolis-Hastings kernel.",
		}, []string{"kernel"}),
		swapAccept: factory.NewGauge(prometheus.GaugeOpts{
			Name: "plasmocore_replica_swap_acceptance_rate",
			Help: "Cumulative acceptance rate of adjacent replica-exchange swaps.",
		}),
		chainTemp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plasmocore_chain_inverse_temperature",
			Help: "Inverse temperature (beta) of each tempered replica.",
		}, []string{"chain"}),
		logLikelihood: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plasmocore_chain_log_likelihood",
			Help: "Most recent log-likelihood value of each chain.",
		}, []string{"chain"}),
	}
}

// ObserveKernel records a kernel's current acceptance rate.
func (m *RunMetrics) ObserveKernel(label string, acceptanceRate float64) {
	m.kernelAccept.WithLabelValues(label).Set(acceptanceRate)
}

// ObserveSwap records replica exchange's current acceptance rate.
func (m *RunMetrics) ObserveSwap(acceptanceRate float64) {
	m.swapAccept.Set(acceptanceRate)
}

// ObserveChain records one chain's temperature and log-likelihood.
func (m *RunMetrics) ObserveChain(label string, beta, logLikelihood float64) {
	m.chainTemp.WithLabelValues(label).Set(beta)
	m.logLikelihood.WithLabelValues(label).Set(logLikelihood)
}

// Serve starts an HTTP server exposing /metrics on addr. It blocks; callers
// run it in its own goroutine and treat http.ErrServerClosed as a clean
// stop.
func (m *RunMetrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
