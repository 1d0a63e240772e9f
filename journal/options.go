package journal

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/relkit/go-release/converter"
)

type Options struct {
	Logger *slog.Logger

	// Converter serializes run results for persistence. Defaults to the JSON
	// converter.
	Converter converter.Converter

	Clock clock.Clock
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithConverter(c converter.Converter) Option {
	return func(o *Options) {
		o.Converter = c
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func ApplyOptions(opts ...Option) Options {
	options := Options{
		Logger:    slog.Default(),
		Converter: converter.DefaultConverter,
		Clock:     clock.New(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return options
}
