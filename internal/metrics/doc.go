// Package metrics provides the observability hooks used by the rewriter, the
// preview server and the publisher.
//
// Components receive a Recorder through their constructor and default to
// NoopRecorder, so no caller needs nil checks:
//
//	recorder := metrics.NewPrometheusRecorder(registry, metrics.ScopePreview)
//	handler := preview.NewHandler(opts, recorder, logger)
//
// The preview server exposes its registry over HTTP when metrics are enabled.
// The one-shot rewrite and publish commands dump theirs with WriteTextfile.
package metrics
