package session

import (
	"fmt"
	"sync"
	"time"
)

// Countdown ticks down to an absolute wall-clock deadline. Remaining time is
// always derived from the deadline rather than a decrementing counter, so
// elapsed real time is reflected correctly when a session resumes. The expiry
// callback fires at most once; Stop cancels ticking when the owning phase ends.
type Countdown struct {
	deadline time.Time
	now      func() time.Time
	interval time.Duration
	onTick   func(remaining int)
	onExpire func()

	expireOnce sync.Once
	stopOnce   sync.Once
	done       chan struct{}
}

// NewCountdown builds a countdown toward deadline. now may be nil for the
// real clock; interval <= 0 defaults to one second.
func NewCountdown(deadline time.Time, now func() time.Time, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		deadline: deadline,
		now:      now,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
		done:     make(chan struct{}),
	}
}

// Start begins ticking. A deadline already in the past expires right away
// without spawning a ticker. Expiry always fires off the caller's goroutine,
// so owners may hold their own locks while starting.
func (c *Countdown) Start() {
	if c.Remaining() <= 0 {
		go c.fire()
		return
	}
	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.step() {
				return
			}
		}
	}
}

// step emits one tick and reports whether the countdown expired.
func (c *Countdown) step() bool {
	remaining := c.Remaining()
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if remaining <= 0 {
		c.fire()
		return true
	}
	return false
}

func (c *Countdown) fire() {
	c.expireOnce.Do(func() {
		if c.onExpire != nil {
			c.onExpire()
		}
	})
}

// Stop cancels ticking. It is safe to call repeatedly and from expiry callbacks.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// Remaining returns the whole seconds left, floored at 0.
func (c *Countdown) Remaining() int {
	left := c.deadline.Sub(c.now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// FormatRemaining renders seconds as M:SS (minutes unpadded).
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
