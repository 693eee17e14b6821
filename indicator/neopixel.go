package indicator

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoNormalIdle     = "@3 !150000 400000"
	neoBusy           = "@2 !50000 404000"
	neoScanning       = "@1 !100000 004000"
	neoDecoded        = "@1 !50000 8000"
	neoFailed         = "@2 !10000 ff"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	pipe io.WriteCloser

	mu         sync.Mutex
	idleString string
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}

	return &Neopixel{
		pipe:       f,
		idleString: neoConnectionLost, // until the broker connects
	}, nil
}

// Idle implements Indicator.Idle.
func (n *Neopixel) Idle(info *Info) {
	n.mu.Lock()
	s := n.idleString
	n.mu.Unlock()
	n.write(s)
}

// Busy implements Indicator.Busy.
func (n *Neopixel) Busy(info *Info) {
	n.write(neoBusy)
}

// Scanning implements Indicator.Scanning.
func (n *Neopixel) Scanning(info *Info) {
	n.write(neoScanning)
}

// Decoded implements Indicator.Decoded.
func (n *Neopixel) Decoded(info *Info) {
	n.write(neoDecoded)
}

// Failed implements Indicator.Failed.
func (n *Neopixel) Failed(info *Info) {
	n.write(neoFailed)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() {
	n.mu.Lock()
	n.idleString = neoConnectionLost
	n.mu.Unlock()
	n.write(neoConnectionLost)
}

// Connected implements Indicator.Connected.
func (n *Neopixel) Connected() {
	n.mu.Lock()
	n.idleString = neoNormalIdle
	n.mu.Unlock()
}

// Pulse implements Indicator.Pulse.
func (n *Neopixel) Pulse(d time.Duration) {}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() {
	n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) {
	if n.pipe != nil {
		n.pipe.Write([]byte(s))
	}
}
