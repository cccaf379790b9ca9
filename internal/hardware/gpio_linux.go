//go:build linux

package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// openPin initializes the periph.io GPIO host driver and configures the
// named pin as a pulled-up input. The returned function reports true while
// the pin reads low (button pressed to ground).
func openPin(name string) (func() (bool, error), error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init failed: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio: failed to open %s", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gpio: failed to configure %s as input: %w", name, err)
	}

	return func() (bool, error) {
		return pin.Read() == gpio.Low, nil
	}, nil
}
