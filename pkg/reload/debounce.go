package reload

import (
	"context"
	"time"
)

// DefaultDelay is how long a watched file must stay quiet before it is
// reloaded
const DefaultDelay = time.Second

// Debouncer runs an action once a burst of triggers has been quiet for the
// configured delay. Each trigger re-arms the timer. The action runs on the
// Run goroutine, so two actions never overlap; triggers that arrive while
// the action is running arm the timer again once it returns.
type Debouncer struct {
	delay  time.Duration
	action func()
	kick   chan struct{}
}

// NewDebouncer creates a debouncer for action. A non-positive delay falls
// back to DefaultDelay.
func NewDebouncer(delay time.Duration, action func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		delay:  delay,
		action: action,
		kick:   make(chan struct{}, 1),
	}
}

// Trigger records a change. It never blocks.
func (d *Debouncer) Trigger() {
	select {
	case d.kick <- struct{}{}:
	default:
		// a trigger is already pending
	}
}

// Run drives the debouncer until ctx is done. A pending timer is dropped on
// exit; an action already running is allowed to finish.
func (d *Debouncer) Run(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time // nil while idle
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-d.kick:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(d.delay)
			fire = timer.C

		case <-fire:
			timer, fire = nil, nil
			d.action()
		}
	}
}
