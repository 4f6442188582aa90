// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor is a per-thread asynchronous I/O reactor: it multiplexes
// handle readiness across several OS polling primitives, dispatches expired
// timers, and gives cooperative callbacks well-defined thread-affinity and
// re-entrancy rules.
//
// # Architecture
//
// A [Reactor] owns a handle registry, a timer list, and exactly one active
// backend at a time, chosen from four mechanisms: [Poll] (array-based
// readiness), [Select] (set-based readiness), [Epoll] (Linux readiness
// notification queue), and [Kqueue] (BSD/Darwin kernel event filter queue).
// [Reactor.Run] blocks the calling goroutine, looping: wait for readiness or
// the next timer deadline, dispatch ready handles' callbacks in the order
// the backend reported them, drain any handles callbacks deregistered
// mid-batch, then fire expired timers.
//
// # Thread affinity
//
// Exactly one goroutine owns a Reactor's dispatch loop. [ThreadInit] creates
// a reactor bound to the calling goroutine and, if none exists yet,
// publishes it as the process-wide fallback, which the package's internal
// per-goroutine lookup returns for a goroutine with no reactor of its own.
// [ThreadAttach] binds a goroutine to an existing reactor. The package has
// no package-level wrappers around that lookup; operations are methods on
// [*Reactor]. A foreign goroutine may issue reactor operations during a
// [Reactor.ThreadEnter] / [Reactor.ThreadLeave] window; called from any
// other goroutine outside that window, the operations that run
// [Reactor.ThreadCheck] (Register, Deregister, SetMechanism,
// SetMaxHandles, the timer operations, and Run) fail with a PERMISSION
// error.
//
// # Usage
//
//	r, err := reactor.ThreadInit(reactor.WithMaxHandles(256))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reactor.ThreadClose()
//
//	err = r.Register(reactor.Handle(fd), reactor.Read, func(readiness reactor.Interest, arg any) {
//	    fmt.Println("ready:", readiness)
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := r.Run(nil); err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency model
//
// A reactor is single-threaded and cooperative: callbacks run on the
// owning goroutine and must return promptly (the reactor warns, and
// records in [Metrics.SlowCallbacks], when one exceeds the configured
// max-blocking duration). The only suspension point is the active
// backend's wait call; the reactor releases its mutex for exactly that
// duration so foreign goroutines can register or deregister handles
// while a wait is in flight. Multiple reactors may run in parallel, one
// per goroutine.
//
// # Errors
//
// Failures the reactor detects itself are returned as an [*Error] carrying
// a stable [Kind] (INVALID, NO_MEMORY, TOO_MANY, NOT_SUPPORTED, BAD_HANDLE,
// INTR, PERMISSION, ALREADY), usable with errors.Is against the package's
// Err* sentinels. Failures reported by an OS polling call (other than an
// interrupted wait) are returned wrapped with the operation name via
// [WrapError], with the system error as their cause; they are not [*Error]
// values and do not match the Err* sentinels.
package reactor
