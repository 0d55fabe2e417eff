// common/prometheus/prometheus.go
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultGatherer is the registry served on the metrics endpoint.
var DefaultGatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler for /metrics. Collection errors are
// reported in the response instead of failing the scrape.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
