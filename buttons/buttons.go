// Package buttons reads the front-panel push buttons and drives the
// scanning LED.
package buttons

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warthog618/gpio"
)

// Button names a front-panel button.
type Button int

const (
	ButtonToggle Button = iota // switch front/back camera
	ButtonStop
	ButtonLibrary // cycle to the next library
)

func (b Button) String() string {
	switch b {
	case ButtonToggle:
		return "toggle"
	case ButtonStop:
		return "stop"
	case ButtonLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// Config holds BCM pin numbers. Zero means not fitted.
type Config struct {
	TogglePin  int           `yaml:"toggle_pin"`
	StopPin    int           `yaml:"stop_pin"`
	LibraryPin int           `yaml:"library_pin"`
	LEDPin     int           `yaml:"led_pin"`
	Debounce   time.Duration `yaml:"debounce"` // default 200ms
}

func (c Config) enabled() bool {
	return c.TogglePin != 0 || c.StopPin != 0 || c.LibraryPin != 0 || c.LEDPin != 0
}

type led interface {
	High()
	Low()
}

// Pad watches the buttons and calls OnPress from a single goroutine.
type Pad struct {
	OnPress func(Button)

	events   chan Button
	debounce time.Duration
	last     map[Button]time.Time
	led      led
	scanning chan bool
	inputs   []*gpio.Pin
}

// New opens the GPIO block and watches the configured buttons. Returns nil
// if no pins are configured.
func New(cfg Config, onPress func(Button)) (*Pad, error) {
	if !cfg.enabled() {
		return nil, nil
	}

	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	p := newPad(cfg.Debounce, onPress)

	for b, n := range map[Button]int{ButtonToggle: cfg.TogglePin, ButtonStop: cfg.StopPin, ButtonLibrary: cfg.LibraryPin} {
		if n == 0 {
			continue
		}
		b := b
		pin := gpio.NewPin(n)
		pin.Input()
		pin.PullUp()
		if err := pin.Watch(gpio.EdgeFalling, func(*gpio.Pin) { p.press(b) }); err != nil {
			p.Release()
			return nil, fmt.Errorf("watch %s button on pin %d: %w", b, n, err)
		}
		p.inputs = append(p.inputs, pin)
	}

	if cfg.LEDPin != 0 {
		pin := gpio.NewPin(cfg.LEDPin)
		pin.Output()
		pin.Low()
		p.led = pin
	}

	log.Printf("Buttons: toggle=%d stop=%d library=%d led=%d", cfg.TogglePin, cfg.StopPin, cfg.LibraryPin, cfg.LEDPin)
	return p, nil
}

func newPad(debounce time.Duration, onPress func(Button)) *Pad {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Pad{
		OnPress:  onPress,
		events:   make(chan Button, 10),
		debounce: debounce,
		last:     map[Button]time.Time{},
		scanning: make(chan bool, 1),
	}
}

// press is called from the watcher; it never blocks.
func (p *Pad) press(b Button) {
	select {
	case p.events <- b:
	default:
	}
}

// SetScanning lights the LED while a capture runs. Only the latest value
// is kept.
func (p *Pad) SetScanning(on bool) {
	select {
	case <-p.scanning:
	default:
	}
	p.scanning <- on
}

// Run dispatches presses until ctx is done.
func (p *Pad) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case on := <-p.scanning:
			if p.led != nil {
				if on {
					p.led.High()
				} else {
					p.led.Low()
				}
			}
		case b := <-p.events:
			p.dispatch(b, time.Now())
		}
	}
}

func (p *Pad) dispatch(b Button, now time.Time) {
	if now.Sub(p.last[b]) < p.debounce {
		return
	}
	p.last[b] = now
	log.Printf("Buttons: %s pressed", b)
	if p.OnPress != nil {
		p.OnPress(b)
	}
}

// Release stops watching and closes the GPIO block.
func (p *Pad) Release() error {
	for _, pin := range p.inputs {
		pin.Unwatch()
	}
	if p.led != nil {
		p.led.Low()
	}
	return gpio.Close()
}
