// Package metrics exposes the Prometheus scrape endpoint. Individual packages
// register their own collectors via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
