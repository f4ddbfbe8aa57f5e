package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
)

// WriteTextfile writes everything gathered from reg to path in the text
// exposition format, for the node_exporter textfile collector. One-shot
// commands use it since they exit before anything could scrape them.
func WriteTextfile(path string, reg prom.Gatherer) error {
	if err := prom.WriteToTextfile(path, reg); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write metrics file").
			WithContext("path", path).Build()
	}
	return nil
}
