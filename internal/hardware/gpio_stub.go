//go:build !linux

package hardware

import "fmt"

func openPin(name string) (func() (bool, error), error) {
	return nil, fmt.Errorf("gpio: pin %s not supported on this platform", name)
}
