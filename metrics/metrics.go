package metrics

import "time"

// Tags add dimensions to a metric, for example the rollback strategy or a
// skip reason.
type Tags map[string]string

// Client is the metric sink the engine reports into. Implementations adapt
// it to a concrete metrics system; the engine defaults to a no-op client.
type Client interface {
	// Counter increments the named counter by value.
	Counter(name string, tags Tags, value float64)

	// Distribution records one sample of the named distribution.
	Distribution(name string, tags Tags, value float64)

	// Gauge sets the named gauge to value.
	Gauge(name string, tags Tags, value int64)

	// Timing records an elapsed duration under the given name.
	Timing(name string, tags Tags, duration time.Duration)

	// WithTags returns a client that attaches the given tags to every
	// metric it reports.
	WithTags(tags Tags) Client
}
