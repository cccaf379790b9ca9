// Package hardware watches the factory-reset button wired to a GPIO pin.
package hardware

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultHold = 5 * time.Second
	defaultPoll = 100 * time.Millisecond
)

// ResetButton fires a callback when the configured pin is held low for the
// hold duration. The button is expected active-low with an internal pull-up.
type ResetButton struct {
	pinName string
	hold    time.Duration
	poll    time.Duration
	onHold  func()

	// read reports whether the button is currently pressed. Set by
	// openPin on real hardware, injectable in tests.
	read func() (bool, error)
}

// NewResetButton watches the named pin (BCM naming, e.g. "GPIO17") and
// invokes onHold after a 5-second continuous press.
func NewResetButton(pinName string, onHold func()) *ResetButton {
	return &ResetButton{
		pinName: pinName,
		hold:    defaultHold,
		poll:    defaultPoll,
		onHold:  onHold,
	}
}

// SetHold overrides the required press duration.
func (b *ResetButton) SetHold(d time.Duration) { b.hold = d }

// SetPoll overrides the sampling interval.
func (b *ResetButton) SetPoll(d time.Duration) { b.poll = d }

// Watch samples the pin until ctx is cancelled. The callback fires once per
// press; the button must be released before it can fire again.
func (b *ResetButton) Watch(ctx context.Context) error {
	if b.read == nil {
		read, err := openPin(b.pinName)
		if err != nil {
			return err
		}
		b.read = read
	}

	slog.Info("hardware: watching reset button", "pin", b.pinName, "hold", b.hold)

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var pressedSince time.Time
	fired := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pressed, err := b.read()
		if err != nil {
			slog.Warn("hardware: button read failed", "err", err)
			continue
		}

		if !pressed {
			pressedSince = time.Time{}
			fired = false
			continue
		}
		if pressedSince.IsZero() {
			pressedSince = time.Now()
			continue
		}
		if !fired && time.Since(pressedSince) >= b.hold {
			fired = true
			slog.Info("hardware: reset button held, firing", "pin", b.pinName)
			if b.onHold != nil {
				b.onHold()
			}
		}
	}
}
