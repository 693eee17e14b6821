package reader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"
	"syscall"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"qrscan/scanner"
)

// Source is one opened hardware scanner. Implementations block until a code
// is read or the context is cancelled.
type Source interface {
	// ReadCode returns the next scanned payload. ("", nil) means the read
	// timed out with nothing scanned.
	ReadCode(ctx context.Context) (string, error)

	// Close releases the device.
	Close() error
}

// DeviceConfig describes one attached scanner.
type DeviceConfig struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Type   string `yaml:"type"`   // "keyboard", "serial", "framed"
	Device string `yaml:"device"` // e.g. "/dev/ttyACM0", "/dev/input/event0"
	Baud   int    `yaml:"baud"`   // serial types only
}

// Config lists the scanners the library may open.
type Config struct {
	Devices []DeviceConfig `yaml:"devices"`
}

// Library exposes keyboard-wedge and serial QR scanners as a push-callback
// scanner library. Each scanner owns its read loop.
type Library struct {
	devices []DeviceConfig

	// open is replaced in tests.
	open func(DeviceConfig) (Source, error)

	mu   sync.Mutex
	busy map[string]bool
}

// New creates a library over the configured devices.
func New(cfg Config) *Library {
	return &Library{
		devices: cfg.Devices,
		open:    openSource,
		busy:    map[string]bool{},
	}
}

// Cameras implements scanner.CallbackLibrary. Serial devices without a
// configured label are named after the USB product string.
func (l *Library) Cameras(ctx context.Context) ([]scanner.Device, error) {
	var products map[string]string
	out := make([]scanner.Device, 0, len(l.devices))
	for i, d := range l.devices {
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("scanner%d", i)
		}
		label := d.Label
		if label == "" && d.Type != "keyboard" {
			if products == nil {
				products = usbProducts()
			}
			label = products[d.Device]
		}
		out = append(out, scanner.Device{ID: id, Label: label})
	}
	return out, nil
}

func usbProducts() map[string]string {
	out := map[string]string{}
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Printf("Reader: list serial ports: %v", err)
		return out
	}
	for _, p := range ports {
		if p.IsUSB && p.Product != "" {
			out[p.Name] = p.Product
		}
	}
	return out
}

// NewScanner implements scanner.CallbackLibrary.
func (l *Library) NewScanner() scanner.CallbackScanner {
	return &Scanner{lib: l}
}

func (l *Library) lookup(id string) (DeviceConfig, bool) {
	for i, d := range l.devices {
		if d.ID == id || (d.ID == "" && id == fmt.Sprintf("scanner%d", i)) {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

func (l *Library) claim(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[id] {
		return false
	}
	l.busy[id] = true
	return true
}

func (l *Library) release(id string) {
	l.mu.Lock()
	delete(l.busy, id)
	l.mu.Unlock()
}

func openSource(d DeviceConfig) (Source, error) {
	switch d.Type {
	case "keyboard":
		return NewKeyboard(d.Device)
	case "framed":
		return NewFramed(d.Device, d.Baud)
	case "serial", "":
		return NewSerial(d.Device, d.Baud)
	default:
		return nil, fmt.Errorf("unknown scanner type %q", d.Type)
	}
}

// classifyOpenError tags device open failures with the capture error kinds.
func classifyOpenError(err error) error {
	var pe *serial.PortError
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", scanner.ErrNotAllowed, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", scanner.ErrNotFound, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %v", scanner.ErrNotReadable, err)
	case errors.As(err, &pe):
		switch pe.Code() {
		case serial.PermissionDenied:
			return fmt.Errorf("%w: %v", scanner.ErrNotAllowed, err)
		case serial.PortNotFound:
			return fmt.Errorf("%w: %v", scanner.ErrNotFound, err)
		case serial.PortBusy:
			return fmt.Errorf("%w: %v", scanner.ErrNotReadable, err)
		}
	}
	return err
}
