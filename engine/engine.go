package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danthegoodman1/tablestream/gologger"
	"github.com/danthegoodman1/tablestream/stream"
)

var (
	logger = gologger.NewLogger()

	ErrAlreadyRegistered = errors.New("name already registered")
	ErrNotRegistered     = errors.New("name not registered")
)

type (
	// Engine ties named sources and sinks to the stream core. All engine
	// knobs come from the explicit config handed to New.
	Engine struct {
		cfg stream.Config

		mu      sync.RWMutex
		sources map[string]stream.Source
		sinks   map[string]stream.Sink
	}
)

func New(cfg stream.Config) *Engine {
	return &Engine{
		cfg:     cfg,
		sources: make(map[string]stream.Source),
		sinks:   make(map[string]stream.Sink),
	}
}

func (e *Engine) Config() stream.Config {
	return e.cfg
}

func (e *Engine) RegisterSource(name string, src stream.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.sources[name]; exists {
		return fmt.Errorf("source %s: %w", name, ErrAlreadyRegistered)
	}
	e.sources[name] = src
	logger.Debug().Str("source", name).Msg("registered source")
	return nil
}

func (e *Engine) RegisterSink(name string, sink stream.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.sinks[name]; exists {
		return fmt.Errorf("sink %s: %w", name, ErrAlreadyRegistered)
	}
	e.sinks[name] = sink
	logger.Debug().Str("sink", name).Msg("registered sink")
	return nil
}

func (e *Engine) Source(name string) (stream.Source, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	src, ok := e.sources[name]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", name, ErrNotRegistered)
	}
	return src, nil
}

func (e *Engine) Sink(name string) (stream.Sink, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sink, ok := e.sinks[name]
	if !ok {
		return nil, fmt.Errorf("sink %s: %w", name, ErrNotRegistered)
	}
	return sink, nil
}

func (e *Engine) SourceNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.sources))
	for name := range e.sources {
		names = append(names, name)
	}
	return names
}

func (e *Engine) SinkNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.sinks))
	for name := range e.sinks {
		names = append(names, name)
	}
	return names
}

// Stream builds a lazy stream over a registered source.
func (e *Engine) Stream(ctx context.Context, sourceName string) (*stream.Stream, error) {
	src, err := e.Source(sourceName)
	if err != nil {
		return nil, err
	}
	s, err := stream.FromSource(ctx, src, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("error in stream.FromSource: %w", err)
	}
	return s, nil
}

// Run builds a stream over sourceName, lets build chain transformations onto
// it (nil build runs the source as-is), and writes the result to sinkName.
func (e *Engine) Run(ctx context.Context, sourceName, sinkName string, build func(*stream.Stream) (*stream.Stream, error)) (stream.SinkReport, error) {
	s, err := e.Stream(ctx, sourceName)
	if err != nil {
		return stream.SinkReport{}, err
	}
	if build != nil {
		s, err = build(s)
		if err != nil {
			return stream.SinkReport{}, fmt.Errorf("error building pipeline: %w", err)
		}
	}
	sink, err := e.Sink(sinkName)
	if err != nil {
		return stream.SinkReport{}, err
	}
	return s.WriteTo(ctx, sink)
}
