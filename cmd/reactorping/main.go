// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command reactorping is a worked example exercising the reactor end to
// end: registration, self-removal during dispatch handing off to a fresh
// handle (spec.md §8 scenario 1), a watchdog timer racing an I/O event
// (scenario 3), and an explicit runtime mechanism switch (§4.B).
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	reactor "github.com/joeycumines/go-reactor"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	pingR, pingW, err := os.Pipe()
	if err != nil {
		return err
	}
	defer pingR.Close()
	defer pingW.Close()

	pongR, pongW, err := os.Pipe()
	if err != nil {
		return err
	}
	defer pongR.Close()
	defer pongW.Close()

	r, err := reactor.ThreadInit(
		reactor.WithLogger(reactor.NewWriterLogger(reactor.LevelInfo, os.Stdout)),
		reactor.WithMetrics(reactor.NewMetrics()),
	)
	if err != nil {
		return err
	}
	defer reactor.ThreadClose()

	pingFD := reactor.Handle(pingR.Fd())
	pongFD := reactor.Handle(pongR.Fd())

	// A watchdog: if nothing fires within a second, cancel anyway, so this
	// example always terminates even if the pipes misbehave.
	if _, err := r.ScheduleTimer(time.Second, r.Cancel); err != nil {
		return err
	}

	err = r.Register(pingFD, reactor.Read, func(readiness reactor.Interest, _ any) {
		var buf [1]byte
		_, _ = pingR.Read(buf[:])
		fmt.Printf("ping: handle=%d readiness=%s mechanism=%s\n", pingFD, readiness, r.GetMechanism())

		// Self-removal during dispatch, handing off to a fresh handle
		// (spec.md §8 scenario 1): deregistering pingFD here takes effect
		// at once (its record is never freed under the running dispatch),
		// and registering pongFD is visible immediately to later handles
		// in the same batch.
		if err := r.Deregister(pingFD); err != nil {
			fmt.Println("deregister failed:", err)
		}
		if err := r.Register(pongFD, reactor.Read, func(readiness reactor.Interest, _ any) {
			var buf [1]byte
			_, _ = pongR.Read(buf[:])
			fmt.Printf("pong: handle=%d readiness=%s active=%d\n", pongFD, readiness, r.CountActiveHandles())
			r.Cancel()
		}, nil); err != nil {
			fmt.Println("register pong failed:", err)
		}

		if _, err := pongW.Write([]byte{1}); err != nil {
			fmt.Println("write pong failed:", err)
		}
	}, nil)
	if err != nil {
		return err
	}

	fmt.Println("initial mechanism:", r.GetMechanism())
	if m := reactor.Poll; r.GetMechanism() != m {
		if err := r.SetMechanism(m); err == nil {
			fmt.Println("switched mechanism to:", r.GetMechanism())
		}
	}

	if _, err := pingW.Write([]byte{1}); err != nil {
		return err
	}

	if err := r.Run(nil); err != nil {
		return err
	}

	fmt.Println("active handles at exit:", r.CountActiveHandles())
	return nil
}
