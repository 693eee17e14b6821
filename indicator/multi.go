package indicator

import "time"

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

// NewMulti combines indicators.
func NewMulti(indicators ...Indicator) *Multi {
	return &Multi{indicators: indicators}
}

// Idle implements Indicator.Idle.
func (m *Multi) Idle(info *Info) {
	for _, ind := range m.indicators {
		ind.Idle(info)
	}
}

// Busy implements Indicator.Busy.
func (m *Multi) Busy(info *Info) {
	for _, ind := range m.indicators {
		ind.Busy(info)
	}
}

// Scanning implements Indicator.Scanning.
func (m *Multi) Scanning(info *Info) {
	for _, ind := range m.indicators {
		ind.Scanning(info)
	}
}

// Decoded implements Indicator.Decoded.
func (m *Multi) Decoded(info *Info) {
	for _, ind := range m.indicators {
		ind.Decoded(info)
	}
}

// Failed implements Indicator.Failed.
func (m *Multi) Failed(info *Info) {
	for _, ind := range m.indicators {
		ind.Failed(info)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (m *Multi) ConnectionLost() {
	for _, ind := range m.indicators {
		ind.ConnectionLost()
	}
}

// Connected implements Indicator.Connected.
func (m *Multi) Connected() {
	for _, ind := range m.indicators {
		ind.Connected()
	}
}

// Pulse implements Indicator.Pulse.
func (m *Multi) Pulse(d time.Duration) {
	for _, ind := range m.indicators {
		ind.Pulse(d)
	}
}

// Shutdown implements Indicator.Shutdown.
func (m *Multi) Shutdown() {
	for _, ind := range m.indicators {
		ind.Shutdown()
	}
}

// Release implements Indicator.Release.
func (m *Multi) Release() error {
	var lastErr error
	for _, ind := range m.indicators {
		if err := ind.Release(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
