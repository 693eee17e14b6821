package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/hjkoskel/govattu"
)

// pinWriter is the part of the GPIO block the indicator drives.
type pinWriter interface {
	PinSet(pin uint8)
	PinClear(pin uint8)
}

// GPIO implements Indicator using discrete GPIO LED pins and an optional
// vibration motor.
type GPIO struct {
	hw        govattu.Vattu
	out       pinWriter
	greenPin  *uint8
	yellowPin *uint8
	redPin    *uint8
	hapticPin *uint8

	mu     sync.Mutex
	haptic *time.Timer
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(greenPin, yellowPin, redPin, hapticPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	for _, pin := range []*uint8{greenPin, yellowPin, redPin, hapticPin} {
		if pin != nil {
			hw.PinMode(*pin, govattu.ALToutput)
			hw.PinClear(*pin)
		}
	}

	return &GPIO{
		hw:        hw,
		out:       hw,
		greenPin:  greenPin,
		yellowPin: yellowPin,
		redPin:    redPin,
		hapticPin: hapticPin,
	}, nil
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle(info *Info) {
	g.only()
}

// Busy implements Indicator.Busy.
func (g *GPIO) Busy(info *Info) {
	g.only(g.yellowPin)
}

// Scanning implements Indicator.Scanning.
func (g *GPIO) Scanning(info *Info) {
	g.only(g.greenPin)
}

// Decoded implements Indicator.Decoded. Green and yellow together mark a
// fresh result until the next state change.
func (g *GPIO) Decoded(info *Info) {
	g.only(g.greenPin, g.yellowPin)
}

// Failed implements Indicator.Failed.
func (g *GPIO) Failed(info *Info) {
	g.only(g.redPin)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() {
	g.only(g.yellowPin, g.redPin)
}

// Connected implements Indicator.Connected.
func (g *GPIO) Connected() {
	g.only()
}

// Pulse implements Indicator.Pulse. A pulse that arrives while the motor is
// running extends it.
func (g *GPIO) Pulse(d time.Duration) {
	if g.hapticPin == nil {
		return
	}
	pin := *g.hapticPin

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.haptic != nil {
		g.haptic.Stop()
	}
	g.out.PinSet(pin)
	g.haptic = time.AfterFunc(d, func() {
		g.out.PinClear(pin)
	})
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.only()
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.only()
	g.mu.Lock()
	if g.haptic != nil {
		g.haptic.Stop()
	}
	g.mu.Unlock()
	if g.hapticPin != nil {
		g.out.PinClear(*g.hapticPin)
	}
	if g.hw == nil {
		return nil
	}
	return g.hw.Close()
}

// only lights exactly the given LEDs.
func (g *GPIO) only(on ...*uint8) {
	lit := map[*uint8]bool{}
	for _, p := range on {
		lit[p] = true
	}
	for _, p := range []*uint8{g.greenPin, g.yellowPin, g.redPin} {
		if p == nil {
			continue
		}
		if lit[p] {
			g.out.PinSet(*p)
		} else {
			g.out.PinClear(*p)
		}
	}
}
