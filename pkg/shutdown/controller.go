// Package shutdown turns termination signals into a cooperative stop request.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Signals are the signals Watch registers by default
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM}

// Controller holds the running flag. A new controller is running; Stop
// clears the flag for good.
type Controller struct {
	running atomic.Bool
}

// NewController creates a running controller
func NewController() *Controller {
	c := &Controller{}
	c.running.Store(true)
	return c
}

// Running reports whether no stop has been requested
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Stop requests a stop. Safe to call from any goroutine, any number of times.
func (c *Controller) Stop() {
	c.running.Store(false)
}

// Watch calls Stop when one of sigs (Signals when empty) is delivered. The
// returned function unregisters the signals and waits for the watcher to
// exit.
func (c *Controller) Watch(sigs ...os.Signal) func() {
	if len(sigs) == 0 {
		sigs = Signals
	}

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ch:
				c.Stop()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
			wg.Wait()
		})
	}
}
