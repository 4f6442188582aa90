// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// reactorOptions holds the resolved configuration for a new Reactor.
type reactorOptions struct {
	maxHandles  int
	mechanism   Mechanism
	reuse       bool
	logger      Logger
	metrics     *Metrics
	maxBlocking time.Duration
	lock        Locker
}

// DefaultMaxHandles is the maximum-handles value a Reactor is configured
// with when WithMaxHandles is not supplied. Chosen to match the historical
// default fd_setsize of the reference select-based implementation this
// reactor's interest model is grounded on.
const DefaultMaxHandles = 1024

// DefaultMaxBlocking is the callback duration above which the reactor logs
// a slow-callback warning and records it in Metrics.SlowCallbacks.
const DefaultMaxBlocking = 500 * time.Millisecond

// Locker is the external-mutex redirection contract ("active mutex
// pointer"): a lock/unlock pair a host may supply so that its own
// critical sections share the reactor's mutex.
type Locker interface {
	Lock()
	Unlock()
}

// ReactorOption configures a Reactor at construction.
type ReactorOption interface {
	apply(*reactorOptions) error
}

type reactorOptionFunc func(*reactorOptions) error

func (f reactorOptionFunc) apply(o *reactorOptions) error { return f(o) }

// WithMaxHandles sets the maximum number of concurrently registered
// handles. Must be positive.
func WithMaxHandles(n int) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		if n <= 0 {
			return newError("with_max_handles", KindInvalid, nil)
		}
		o.maxHandles = n
		return nil
	})
}

// WithMechanism pre-selects the polling mechanism, skipping the
// best-available mechanism Run would otherwise probe for at runtime.
func WithMechanism(m Mechanism) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		o.mechanism = m
		return nil
	})
}

// WithReusePolicy sets the initial handle-record reuse policy. Platforms
// without a lowest-free-handle guarantee should pass false.
func WithReusePolicy(reuse bool) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		o.reuse = reuse
		return nil
	})
}

// WithLogger sets the structured logger used for registry, backend, loop,
// thread, signal, and timer events. Defaults to a no-op logger.
func WithLogger(l Logger) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		if l == nil {
			l = NoOpLogger{}
		}
		o.logger = l
		return nil
	})
}

// WithMetrics attaches a Metrics collector. Pass nil to disable metrics
// collection (the default).
func WithMetrics(m *Metrics) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		o.metrics = m
		return nil
	})
}

// WithMaxBlocking overrides DefaultMaxBlocking, the callback duration
// threshold above which a slow-callback warning is logged.
func WithMaxBlocking(d time.Duration) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		o.maxBlocking = d
		return nil
	})
}

// WithMutex redirects the active mutex to an externally supplied Locker,
// so a host can coordinate its own locking with the reactor's critical
// sections.
func WithMutex(l Locker) ReactorOption {
	return reactorOptionFunc(func(o *reactorOptions) error {
		o.lock = l
		return nil
	})
}

func resolveReactorOptions(opts []ReactorOption) (*reactorOptions, error) {
	cfg := &reactorOptions{
		maxHandles:  DefaultMaxHandles,
		reuse:       true,
		logger:      NoOpLogger{},
		maxBlocking: DefaultMaxBlocking,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
