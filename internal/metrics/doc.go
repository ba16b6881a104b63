// Package metrics provides build observability for assetpipe.
//
// Components receive a Recorder through dependency injection. NoopRecorder
// is the default so callers never need nil checks:
//
//	rec := metrics.Recorder(metrics.NoopRecorder{})
//	if cfg.DevServer.Metrics {
//	    reg := prom.NewRegistry()
//	    rec = metrics.NewPrometheusRecorder(reg)
//	    router.Handle("/metrics", metrics.Handler(reg))
//	}
//
// The Prometheus implementation registers all collectors on the registry it
// is given; HTTPHandler exposes that registry in the OpenMetrics format.
package metrics
