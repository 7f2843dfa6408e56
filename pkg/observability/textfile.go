package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoGatherer is returned when a textfile is requested without a Prometheus registry.
var ErrNoGatherer = errors.New("prometheus exporter not enabled")

// WriteTextfile writes the gathered metrics to path in the Prometheus text
// format, suitable for the node_exporter textfile collector.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		return ErrNoGatherer
	}

	err := prometheus.WriteToTextfile(path, gatherer)
	if err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}

	return nil
}
