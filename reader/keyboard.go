package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kenshaw/evdev"
)

var errDeviceGone = errors.New("device closed")

// Keyboard reads keyboard-wedge QR scanners that type the payload followed
// by Enter.
type Keyboard struct {
	device *evdev.Evdev
	ch     <-chan *evdev.EventEnvelope
	keys   keymap
}

// NewKeyboard opens the input device at path.
func NewKeyboard(path string) (*Keyboard, error) {
	dev, err := evdev.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", path, err)
	}

	log.Printf("Opened keyboard device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	return &Keyboard{device: dev}, nil
}

// ReadCode implements Source.
func (k *Keyboard) ReadCode(ctx context.Context) (string, error) {
	if k.ch == nil {
		k.ch = k.device.Poll(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event := <-k.ch:
			if event == nil {
				return "", errDeviceGone
			}

			switch event.Type.(type) {
			case evdev.KeyType:
				if line, ok := k.keys.feed(event.Code, event.Value); ok {
					return line, nil
				}
			}
		}
	}
}

// Close implements Source.
func (k *Keyboard) Close() error {
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}

// Linux input key codes used by keyboard-wedge scanners.
const (
	keyEnter      = 28
	keyKPEnter    = 96
	keyLeftShift  = 42
	keyRightShift = 54
	keyCapsLock   = 58
)

type keyPair struct{ plain, shifted byte }

var keyChars = map[uint16]keyPair{
	2: {'1', '!'}, 3: {'2', '@'}, 4: {'3', '#'}, 5: {'4', '$'}, 6: {'5', '%'},
	7: {'6', '^'}, 8: {'7', '&'}, 9: {'8', '*'}, 10: {'9', '('}, 11: {'0', ')'},
	12: {'-', '_'}, 13: {'=', '+'}, 15: {'\t', '\t'},
	16: {'q', 'Q'}, 17: {'w', 'W'}, 18: {'e', 'E'}, 19: {'r', 'R'}, 20: {'t', 'T'},
	21: {'y', 'Y'}, 22: {'u', 'U'}, 23: {'i', 'I'}, 24: {'o', 'O'}, 25: {'p', 'P'},
	26: {'[', '{'}, 27: {']', '}'},
	30: {'a', 'A'}, 31: {'s', 'S'}, 32: {'d', 'D'}, 33: {'f', 'F'}, 34: {'g', 'G'},
	35: {'h', 'H'}, 36: {'j', 'J'}, 37: {'k', 'K'}, 38: {'l', 'L'},
	39: {';', ':'}, 40: {'\'', '"'}, 41: {'`', '~'}, 43: {'\\', '|'},
	44: {'z', 'Z'}, 45: {'x', 'X'}, 46: {'c', 'C'}, 47: {'v', 'V'}, 48: {'b', 'B'},
	49: {'n', 'N'}, 50: {'m', 'M'},
	51: {',', '<'}, 52: {'.', '>'}, 53: {'/', '?'}, 57: {' ', ' '},
}

// keymap turns key events (value 1 press, 0 release, 2 repeat) into text
// lines.
type keymap struct {
	shift bool
	caps  bool
	buf   strings.Builder
}

func (m *keymap) feed(code uint16, value int32) (string, bool) {
	switch code {
	case keyLeftShift, keyRightShift:
		m.shift = value != 0
		return "", false
	case keyCapsLock:
		if value == 1 {
			m.caps = !m.caps
		}
		return "", false
	}

	if value != 1 {
		return "", false
	}

	if code == keyEnter || code == keyKPEnter {
		line := m.buf.String()
		m.buf.Reset()
		if line == "" {
			return "", false
		}
		return line, true
	}

	kp, ok := keyChars[code]
	if !ok {
		return "", false
	}
	c := kp.plain
	upper := m.shift
	if m.caps && c >= 'a' && c <= 'z' {
		upper = !upper
	}
	if upper {
		c = kp.shifted
	}
	m.buf.WriteByte(c)
	return "", false
}
