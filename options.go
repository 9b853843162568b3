package indexsync

import "go.uber.org/zap"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger    *zap.Logger
	processor string
	noWait    bool
}

// WithLogger sets the logger used by every component.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithProcessor overrides the configured signal processor kind
// ("buffered", "sync" or "none").
func WithProcessor(kind string) Option {
	return func(c *clientConfig) {
		c.processor = kind
	}
}

// WithoutReadinessWait skips waiting for the engine and Postgres to answer.
func WithoutReadinessWait() Option {
	return func(c *clientConfig) {
		c.noWait = true
	}
}
