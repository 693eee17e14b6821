package indicator

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"qrscan/video"
)

type fakePins struct {
	mu sync.Mutex
	on map[uint8]bool
}

func newFakePins() *fakePins {
	return &fakePins{on: map[uint8]bool{}}
}

func (f *fakePins) PinSet(pin uint8) {
	f.mu.Lock()
	f.on[pin] = true
	f.mu.Unlock()
}

func (f *fakePins) PinClear(pin uint8) {
	f.mu.Lock()
	f.on[pin] = false
	f.mu.Unlock()
}

func (f *fakePins) lit(pin uint8) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on[pin]
}

func pin(p uint8) *uint8 { return &p }

func newTestGPIO() (*GPIO, *fakePins) {
	pins := newFakePins()
	return &GPIO{
		out:       pins,
		greenPin:  pin(1),
		yellowPin: pin(2),
		redPin:    pin(3),
		hapticPin: pin(4),
	}, pins
}

func TestGPIOStates(t *testing.T) {
	g, pins := newTestGPIO()

	cases := []struct {
		name   string
		apply  func()
		lights [3]bool
	}{
		{"scanning", func() { g.Scanning(nil) }, [3]bool{true, false, false}},
		{"decoded", func() { g.Decoded(nil) }, [3]bool{true, true, false}},
		{"busy", func() { g.Busy(nil) }, [3]bool{false, true, false}},
		{"failed", func() { g.Failed(nil) }, [3]bool{false, false, true}},
		{"lost", g.ConnectionLost, [3]bool{false, true, true}},
		{"idle", func() { g.Idle(nil) }, [3]bool{false, false, false}},
	}
	for _, c := range cases {
		c.apply()
		got := [3]bool{pins.lit(1), pins.lit(2), pins.lit(3)}
		if got != c.lights {
			t.Errorf("%s: leds = %v, want %v", c.name, got, c.lights)
		}
	}
}

func TestGPIOPulse(t *testing.T) {
	g, pins := newTestGPIO()

	g.Pulse(20 * time.Millisecond)
	if !pins.lit(4) {
		t.Fatalf("haptic pin not set")
	}
	deadline := time.Now().Add(time.Second)
	for pins.lit(4) {
		if time.Now().After(deadline) {
			t.Fatalf("haptic pin never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGPIOPulseWithoutMotor(t *testing.T) {
	pins := newFakePins()
	g := &GPIO{out: pins, greenPin: pin(1)}
	g.Pulse(time.Millisecond)
	if len(pins.on) != 0 {
		t.Fatalf("pins touched: %v", pins.on)
	}
}

type nopCloser struct{ bytes.Buffer }

func (n *nopCloser) Close() error { return nil }

func TestNeopixelIdleFollowsConnection(t *testing.T) {
	buf := &nopCloser{}
	n := &Neopixel{pipe: buf, idleString: neoConnectionLost}

	n.Idle(nil)
	n.Connected()
	n.Idle(nil)
	n.Scanning(nil)

	want := neoConnectionLost + neoNormalIdle + neoScanning
	if got := buf.String(); got != want {
		t.Fatalf("wrote %q, want %q", got, want)
	}
}

type fakeScreen struct {
	shown    []video.Panel
	released bool
}

func (f *fakeScreen) Show(p video.Panel) { f.shown = append(f.shown, p) }
func (f *fakeScreen) Release() error     { f.released = true; return nil }

func TestVideoDecodedShowsQR(t *testing.T) {
	s := &fakeScreen{}
	vi := &VideoIndicator{v: s}

	vi.Decoded(&Info{Content: "example.com", Href: "https://example.com"})
	if len(s.shown) != 1 {
		t.Fatalf("panels shown = %d", len(s.shown))
	}
	p := s.shown[0]
	if p.Image == nil {
		t.Fatalf("no QR image on decoded panel")
	}
	if len(p.Lines) != 1 || p.Lines[0] != "https://example.com" {
		t.Fatalf("lines = %v", p.Lines)
	}
}

func TestVideoIdleWhileOffline(t *testing.T) {
	s := &fakeScreen{}
	vi := &VideoIndicator{v: s}

	vi.ConnectionLost()
	vi.Idle(&Info{Library: "html5"})
	if s.shown[1].Title != "Offline" {
		t.Fatalf("idle while offline showed %q", s.shown[1].Title)
	}
	vi.Connected()
	vi.Idle(&Info{Library: "html5", Camera: "rear"})
	last := s.shown[len(s.shown)-1]
	if last.Title != "Ready" || !strings.Contains(last.Lines[0], "rear") {
		t.Fatalf("idle panel = %+v", last)
	}
}

func TestShorten(t *testing.T) {
	if shorten("abc", 5) != "abc" {
		t.Fatalf("short string changed")
	}
	if got := shorten("abcdefgh", 5); got != "abcd…" {
		t.Fatalf("shorten = %q", got)
	}
}

type recording struct {
	Noop
	calls []string
}

func (r *recording) Scanning(info *Info) { r.calls = append(r.calls, "scanning") }
func (r *recording) Pulse(d time.Duration) {
	r.calls = append(r.calls, "pulse")
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recording{}, &recording{}
	m := NewMulti(a, b)
	m.Scanning(nil)
	m.Pulse(time.Millisecond)
	for _, r := range []*recording{a, b} {
		if strings.Join(r.calls, ",") != "scanning,pulse" {
			t.Fatalf("calls = %v", r.calls)
		}
	}
}

func TestNewWithNothingConfigured(t *testing.T) {
	ind, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := ind.(*Noop); !ok {
		t.Fatalf("got %T, want *Noop", ind)
	}
}
