package server

import (
	"net/http"

	"github.com/hellofresh/health-go/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewObservability serves /metrics and /status on a side port, separate from
// the request path.
func NewObservability(config Config, name, version string, checks ...health.Config) (*http.Server, error) {
	opts := []health.Option{
		health.WithComponent(health.Component{Name: name, Version: version}),
	}

	for _, c := range checks {
		opts = append(opts, health.WithChecks(c))
	}

	h, err := health.New(opts...)
	if err != nil {
		return nil, err
	}

	router := http.NewServeMux()
	router.Handle("/status", h.Handler())
	router.Handle("/metrics", promhttp.Handler())

	return New(config, router), nil
}
