package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Serial reads QR scanners in serial (USB CDC) mode that terminate every
// payload with CR and/or LF.
type Serial struct {
	port   io.ReadCloser
	device string
	lines  lineSplitter
}

// NewSerial opens a line-mode serial scanner. A zero baud means 115200.
func NewSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = 115200
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 250 * time.Millisecond,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device}, nil
}

// ReadCode implements Source.
func (s *Serial) ReadCode(ctx context.Context) (string, error) {
	buf := make([]byte, 256)
	for {
		if line, ok := s.lines.next(); ok {
			return line, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			s.lines.write(buf[:n])
			continue
		}
		// tarm/serial reports a read timeout as an empty read or io.EOF.
		if err == nil || errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s: %v", errDeviceGone, s.device, err)
	}
}

// Close implements Source.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// lineSplitter buffers raw bytes and hands out complete non-empty lines.
type lineSplitter struct {
	pending bytes.Buffer
}

func (l *lineSplitter) write(p []byte) {
	l.pending.Write(p)
}

func (l *lineSplitter) next() (string, bool) {
	for {
		b := l.pending.Bytes()
		i := bytes.IndexAny(b, "\r\n")
		if i < 0 {
			return "", false
		}
		line := string(b[:i])
		l.pending.Next(i + 1)
		if line != "" {
			return line, true
		}
	}
}
