package filter

import "github.com/okian/scalefilter/pkg/logger"

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for configuration diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithSinkName sets the label the filter reports sink metrics under.
func WithSinkName(name string) Option {
	return func(f *Filter) {
		if name != "" {
			f.sinkName = name
		}
	}
}
