package services

import "time"

type options struct {
	clock func() time.Time
}

type Option func(*options)

// WithClock replaces time.Now, mainly so tests can move through the edit window.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
