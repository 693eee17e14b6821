package rotary

import "time"

// Config holds configuration for a rotary encoder.
type Config struct {
	Chip      string        `yaml:"chip"`
	CLKPin    int           `yaml:"clk_pin"`
	DTPin     int           `yaml:"dt_pin"`
	ButtonPin int           `yaml:"button_pin"`
	Detents   int           `yaml:"detents"`    // clicks per step, default 1
	LongPress time.Duration `yaml:"long_press"` // default 1s
}

// Handlers holds callback functions for rotary events.
type Handlers struct {
	OnTurn      func(delta int) // Called with +1 (CW) or -1 (CCW)
	OnPress     func()
	OnLongPress func()
}
