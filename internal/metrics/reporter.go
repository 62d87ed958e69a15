package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Reporter emits operational metrics. Implementations are safe for
// concurrent use; emission failures are logged, never surfaced.
type Reporter interface {
	Count(name string, value int64, tags ...string)
	Gauge(name string, value float64, tags ...string)
	Timing(name string, value time.Duration, tags ...string)
	Close() error
}

// Config holds statsd reporter settings
type Config struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Address   string `json:"address" yaml:"address" mapstructure:"address"`
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// DefaultConfig returns the reporter defaults (disabled; local agent)
func DefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Address:   "127.0.0.1:8125",
		Namespace: "dubsync.",
	}
}

// NewReporter returns a statsd-backed reporter, or a no-op reporter when
// metrics are disabled
func NewReporter(config *Config, logger logging.Logger) (Reporter, error) {
	if config == nil || !config.Enabled {
		return NopReporter{}, nil
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	address := config.Address
	if address == "" {
		address = "127.0.0.1:8125"
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = "dubsync."
	}

	client, err := statsd.New(address, statsd.WithNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Debug("Metrics reporter enabled", logging.Fields{
		"address":   address,
		"namespace": namespace,
	})

	return &statsdReporter{client: client, logger: logger}, nil
}

type statsdReporter struct {
	client *statsd.Client
	logger logging.Logger
}

func (r *statsdReporter) Count(name string, value int64, tags ...string) {
	if err := r.client.Count(name, value, tags, 1); err != nil {
		r.logger.Debug("Dropped count metric", logging.Fields{"metric": name, "error": err.Error()})
	}
}

func (r *statsdReporter) Gauge(name string, value float64, tags ...string) {
	if err := r.client.Gauge(name, value, tags, 1); err != nil {
		r.logger.Debug("Dropped gauge metric", logging.Fields{"metric": name, "error": err.Error()})
	}
}

func (r *statsdReporter) Timing(name string, value time.Duration, tags ...string) {
	if err := r.client.Timing(name, value, tags, 1); err != nil {
		r.logger.Debug("Dropped timing metric", logging.Fields{"metric": name, "error": err.Error()})
	}
}

func (r *statsdReporter) Close() error {
	return r.client.Close()
}

// NopReporter discards every metric
type NopReporter struct{}

func (NopReporter) Count(string, int64, ...string)          {}
func (NopReporter) Gauge(string, float64, ...string)        {}
func (NopReporter) Timing(string, time.Duration, ...string) {}

// Close implements Reporter
func (NopReporter) Close() error { return nil }
