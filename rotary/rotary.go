//go:build linux

package rotary

import (
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Rotary handles a rotary encoder with an optional push button.
type Rotary struct {
	dtLine  *gpiocdev.Line
	clkLine *gpiocdev.Line
	btnLine *gpiocdev.Line

	mu       sync.Mutex
	dec      *decoder
	handlers Handlers
}

// New creates a new rotary encoder handler.
// Returns nil if config has no pins specified (CLKPin and DTPin both 0).
func New(cfg Config, handlers Handlers) (*Rotary, error) {
	if cfg.CLKPin == 0 && cfg.DTPin == 0 {
		return nil, nil
	}

	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}

	debounceRotary := 250 * time.Microsecond
	debounceButton := 2 * time.Millisecond

	r := &Rotary{
		dec:      newDecoder(cfg.Detents, cfg.LongPress),
		handlers: handlers,
	}

	var err error

	r.dtLine, err = gpiocdev.RequestLine(cfg.Chip, cfg.DTPin,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounceRotary),
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		return nil, err
	}

	r.clkLine, err = gpiocdev.RequestLine(cfg.Chip, cfg.CLKPin,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounceRotary),
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		r.dtLine.Close()
		return nil, err
	}

	if cfg.ButtonPin > 0 {
		r.btnLine, err = gpiocdev.RequestLine(cfg.Chip, cfg.ButtonPin,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debounceButton),
			gpiocdev.WithEventHandler(r.handleButton))
		if err != nil {
			r.dtLine.Close()
			r.clkLine.Close()
			return nil, err
		}
	}

	log.Printf("Rotary: encoder on %s clk=%d dt=%d button=%d", cfg.Chip, cfg.CLKPin, cfg.DTPin, cfg.ButtonPin)
	return r, nil
}

func (r *Rotary) handleEvent(evt gpiocdev.LineEvent) {
	var level int
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		level = 1
	case gpiocdev.LineEventFallingEdge:
		level = 0
	default:
		return
	}

	r.mu.Lock()
	var step int
	switch evt.Offset {
	case r.dtLine.Offset():
		r.dec.dt(level)
	case r.clkLine.Offset():
		if level == 1 {
			step = r.dec.clkRise()
		}
	}
	r.mu.Unlock()

	if step != 0 && r.handlers.OnTurn != nil {
		r.handlers.OnTurn(step)
	}
}

// handleButton fires on release; the button pulls the line low.
func (r *Rotary) handleButton(evt gpiocdev.LineEvent) {
	now := time.Now()

	r.mu.Lock()
	if evt.Type == gpiocdev.LineEventFallingEdge {
		r.dec.buttonDown(now)
		r.mu.Unlock()
		return
	}
	long := r.dec.buttonUp(now)
	r.mu.Unlock()

	if long && r.handlers.OnLongPress != nil {
		log.Println("Rotary: long press")
		r.handlers.OnLongPress()
		return
	}
	if r.handlers.OnPress != nil {
		log.Println("Rotary: press")
		r.handlers.OnPress()
	}
}

// Release releases GPIO resources.
func (r *Rotary) Release() error {
	if r.dtLine != nil {
		r.dtLine.Close()
	}
	if r.clkLine != nil {
		r.clkLine.Close()
	}
	if r.btnLine != nil {
		r.btnLine.Close()
	}
	return nil
}
