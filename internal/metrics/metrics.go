package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmwatch_probes_total", Help: "probe attempts by outcome status"}, []string{"status"})
	SamplesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swarmwatch_samples_persisted_total", Help: "sample rows appended"})
	ReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmwatch_received_total", Help: "gossip ingest attempts by result"}, []string{"result"})
	ProbeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "swarmwatch_probe_duration_seconds", Help: "wall time of probe attempts",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8)})
)

func init() {
	prometheus.MustRegister(ProbesTotal, SamplesPersisted, ReceivedTotal, ProbeDuration)
}

func Serve(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnf("metrics server stopped: %v", err)
	}
}
