package exam

import (
	"sync"
	"time"
)

// Countdown is a cancellable countdown with one-second resolution. Done()
// fires once when the window elapses; after Stop() returns, Done() never
// fires and the tick callback is never invoked again.
type Countdown struct {
	mu      sync.Mutex
	stopped bool

	done chan struct{}
	quit chan struct{}
}

// StartCountdown begins a countdown over the given window, ticking every
// second. onTick may be nil.
func StartCountdown(window time.Duration, onTick func(remaining time.Duration)) *Countdown {
	return startCountdown(window, time.Second, onTick)
}

// startCountdown allows a custom tick interval so tests can run with short
// windows.
func startCountdown(window, interval time.Duration, onTick func(remaining time.Duration)) *Countdown {
	c := &Countdown{
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}

	go func() {
		deadline := time.Now().Add(window)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.quit:
				return
			case now := <-ticker.C:
				remaining := deadline.Sub(now)
				if remaining <= 0 {
					c.fire(func() { close(c.done) })
					return
				}
				c.fire(func() {
					if onTick != nil {
						onTick(remaining)
					}
				})
			}
		}
	}()

	return c
}

// Done fires once when the window elapses. Never fires after Stop.
func (c *Countdown) Done() <-chan struct{} { return c.done }

// Stop cancels the countdown. Idempotent. Once Stop returns, neither the
// done channel nor the tick callback will fire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.quit)
}

// fire runs f only while the countdown is still live. Holding the mutex for
// the callback is what makes the no-fire-after-Stop guarantee hold.
func (c *Countdown) fire(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	f()
}
