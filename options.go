package crc32c

type options struct {
	logger   *Logger
	metrics  MetricsCollector
	caps     *Capabilities
	disabled Feature
	impl     string
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger used for selection and verification events.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the collector that receives verification metrics.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithCapabilities replaces host detection with caps.
//
// Features are intersected with the detected ones, so caps can only
// narrow what the host offers. Arch and OS are taken as given.
func WithCapabilities(caps Capabilities) Option {
	return func(o *options) {
		o.caps = &caps
	}
}

// WithDisabledFeatures masks features before selection.
func WithDisabledFeatures(features ...Feature) Option {
	return func(o *options) {
		for _, f := range features {
			o.disabled |= f
		}
	}
}

// WithPortable disables every accelerated kernel.
func WithPortable() Option {
	return func(o *options) {
		o.disabled = ^Feature(0)
	}
}

// WithImplementation forces the named kernel.
//
// New fails if the kernel is unknown or its features are unavailable.
func WithImplementation(name string) Option {
	return func(o *options) {
		o.impl = name
	}
}
