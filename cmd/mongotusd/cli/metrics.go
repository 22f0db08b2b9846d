package cli

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tushandler "github.com/mongotus/mongotus/pkg/handler"
	"github.com/mongotus/mongotus/pkg/prometheuscollector"
)

var MetricsOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "mongotusd_connections_open",
	Help: "Current number of open connections.",
})

func SetupMetrics(mux *http.ServeMux, handler *tushandler.Handler) {
	prometheus.MustRegister(MetricsOpenConnections)
	prometheus.MustRegister(prometheuscollector.New(handler.Metrics))

	stdout.Info().Str("path", Flags.MetricsPath).Msg("Using metrics path")
	mux.Handle(Flags.MetricsPath, promhttp.Handler())
}
