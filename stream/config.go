package stream

import "time"

type (
	// Config carries the engine knobs. It is passed explicitly at stream
	// construction, never read from ambient state.
	Config struct {
		// SinkTimeout bounds how long a sink action waits for all partition
		// workers to reach a terminal state.
		SinkTimeout time.Duration
		// CaseInsensitiveFields controls field name matching in schemas built
		// by this engine.
		CaseInsensitiveFields bool
	}
)

const DefaultSinkTimeout = 30 * time.Second

func DefaultConfig() Config {
	return Config{
		SinkTimeout: DefaultSinkTimeout,
	}
}

func (c Config) sinkTimeout() time.Duration {
	if c.SinkTimeout <= 0 {
		return DefaultSinkTimeout
	}
	return c.SinkTimeout
}
