// Package holdoff implements the BTS hold-off gate that the CCCH
// scheduler and the radio-resource front-end both check before
// accepting new work. A hold-off condition is an external alarm/
// interlock (antenna VSWR trip, thermal cutoff, operator e-stop) wired
// to a GPIO line. When no GPIO chip is configured, the NoGPIO monitor
// is used and its Active always reports false; Open returns an error
// when the configured line cannot be requested (e.g. on a platform
// without GPIO).
package holdoff

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Monitor reports whether the BTS is currently held off.
type Monitor interface {
	Active() bool
	Close() error
}

// noopMonitor never reports hold-off; used when no GPIO line is
// configured.
type noopMonitor struct{}

func (noopMonitor) Active() bool { return false }
func (noopMonitor) Close() error { return nil }

// NoGPIO is the always-inactive Monitor used absent a configured chip.
var NoGPIO Monitor = noopMonitor{}

// ActiveLevel selects which electrical level on the line means
// "held off".
type ActiveLevel int

const (
	ActiveHigh ActiveLevel = iota
	ActiveLow
)

type gpioMonitor struct {
	line   *gpiocdev.Line
	active ActiveLevel
}

// Open watches chip/offset as the hold-off interlock line. level
// selects which electrical state means "held off" (an alarm relay is
// commonly normally-closed, i.e. ActiveLow).
func Open(chip string, offset int, level ActiveLevel) (Monitor, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("holdoff: request %s:%d: %w", chip, offset, err)
	}
	return &gpioMonitor{line: line, active: level}, nil
}

// Active reads the current line level and reports whether it indicates
// hold-off. A read failure is treated as hold-off (fail safe): an
// interlock gate that cannot be read should not wave through new
// channel allocations.
func (m *gpioMonitor) Active() bool {
	v, err := m.line.Value()
	if err != nil {
		return true
	}
	if m.active == ActiveHigh {
		return v != 0
	}
	return v == 0
}

func (m *gpioMonitor) Close() error {
	return m.line.Close()
}
