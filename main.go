package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"make-upload/cmd"
	"make-upload/internal/events"
	"make-upload/internal/output"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// Capture original terminal state (if stdin is a TTY) so we can restore on forced exit.
	var origState *term.State
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}

	forceExit := func(code int) {
		if origState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), origState)
		}
		os.Exit(code)
	}

	// Context used to issue graceful cancellation to command tree.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	done := make(chan struct{})
	shutdown := make(chan struct{})
	var once sync.Once
	requestShutdown := func(reason string) {
		once.Do(func() {
			output.Default.Printf("\n⏹ Stopping (%s), waiting for the current file...\n", reason)
			cancel()
			close(shutdown)
		})
	}

	// Components may ask for a shutdown through the event bus.
	_ = events.GlobalBus.Subscribe(events.EventShutdownRequested, requestShutdown)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		events.GlobalBus.Publish(events.EventShutdownRequested, "interrupt")
		// a second interrupt does not wait for the current file
		<-sigs
		forceExit(130)
	}()

	exitCode := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := cmd.ExecuteContext(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			exitCode = 1
		}
		close(done)
	}()

waitLoop:
	for {
		select {
		case <-shutdown:
			// An upload in flight finishes its current item; give it time.
			select {
			case <-done:
				break waitLoop
			case <-time.After(30 * time.Second):
				output.Default.Println("timeout waiting for the upload to stop, forcing exit")
				forceExit(1)
			}
		case <-done:
			output.Default.ClearLine()
			break waitLoop
		}
	}

	wg.Wait()

	if origState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), origState)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
