package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	stx = 0x02
	etx = 0x03
)

// Framed reads scanners configured for STX/ETX framing: every payload is
// sent as [0x02][data...][0x03].
type Framed struct {
	port   serial.Port
	frames frameParser
}

// NewFramed opens a framed scanner. A zero baud means 9600.
func NewFramed(device string, baud int) (*Framed, error) {
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	_ = p.SetReadTimeout(50 * time.Millisecond)

	f := &Framed{port: p}
	f.flush()
	return f, nil
}

// ReadCode implements Source.
func (f *Framed) ReadCode(ctx context.Context) (string, error) {
	if f.port == nil {
		return "", errors.New("port not initialized")
	}

	buf := make([]byte, 128)
	for {
		if code, ok := f.frames.next(); ok {
			return code, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := f.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errDeviceGone, err)
		}
		if n == 0 {
			return "", nil
		}
		f.frames.write(buf[:n])
	}
}

// Close implements Source.
func (f *Framed) Close() error {
	if f.port == nil {
		return nil
	}
	return f.port.Close()
}

func (f *Framed) flush() {
	if f.port == nil {
		return
	}
	_ = f.port.SetReadTimeout(10 * time.Millisecond)
	defer func() {
		_ = f.port.SetReadTimeout(50 * time.Millisecond)
	}()

	tmp := make([]byte, 64)
	for {
		n, err := f.port.Read(tmp)
		if err != nil || n == 0 {
			return
		}
	}
}

// frameParser extracts STX/ETX framed payloads. Bytes outside a frame are
// dropped.
type frameParser struct {
	in  bool
	cur []byte
	out []string
}

func (p *frameParser) write(b []byte) {
	for _, c := range b {
		switch {
		case c == stx:
			p.in = true
			p.cur = p.cur[:0]
		case c == etx && p.in:
			p.in = false
			if len(p.cur) > 0 {
				p.out = append(p.out, string(p.cur))
			}
		case p.in:
			p.cur = append(p.cur, c)
		}
	}
}

func (p *frameParser) next() (string, bool) {
	if len(p.out) == 0 {
		return "", false
	}
	code := p.out[0]
	p.out = p.out[1:]
	return code, true
}
