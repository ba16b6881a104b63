package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the dev server's /metrics endpoint. A nil registry falls
// back to the process-wide default gatherer.
func Handler(reg *prom.Registry) http.Handler {
	var g prom.Gatherer = prom.DefaultGatherer
	if reg != nil {
		g = reg
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
