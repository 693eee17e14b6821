package rotary

import "time"

// decoder turns quadrature edges and button edges into steps and presses.
type decoder struct {
	detents   int
	longPress time.Duration

	lastDT  int
	acc     int
	pressed time.Time
}

func newDecoder(detents int, longPress time.Duration) *decoder {
	if detents <= 0 {
		detents = 1
	}
	if longPress <= 0 {
		longPress = time.Second
	}
	return &decoder{detents: detents, longPress: longPress}
}

// dt records the DT line level.
func (d *decoder) dt(level int) {
	d.lastDT = level
}

// clkRise returns +1 or -1 once enough edges in one direction have been
// seen, and 0 otherwise. Reversing direction discards the partial step.
func (d *decoder) clkRise() int {
	dir := 1
	if d.lastDT != 0 {
		dir = -1
	}
	if d.acc != 0 && (d.acc > 0) != (dir > 0) {
		d.acc = 0
	}
	d.acc += dir
	if d.acc >= d.detents || d.acc <= -d.detents {
		d.acc = 0
		return dir
	}
	return 0
}

func (d *decoder) buttonDown(at time.Time) {
	d.pressed = at
}

// buttonUp reports whether the press was long. A release with no press
// recorded reports a short press.
func (d *decoder) buttonUp(at time.Time) (long bool) {
	if d.pressed.IsZero() {
		return false
	}
	long = at.Sub(d.pressed) >= d.longPress
	d.pressed = time.Time{}
	return long
}
