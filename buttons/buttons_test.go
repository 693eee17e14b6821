package buttons

import (
	"context"
	"testing"
	"time"
)

func TestDispatchDebounces(t *testing.T) {
	var got []Button
	p := newPad(100*time.Millisecond, func(b Button) { got = append(got, b) })
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p.dispatch(ButtonToggle, t0)
	p.dispatch(ButtonToggle, t0.Add(50*time.Millisecond))
	p.dispatch(ButtonStop, t0.Add(60*time.Millisecond))
	p.dispatch(ButtonToggle, t0.Add(150*time.Millisecond))

	want := []Button{ButtonToggle, ButtonStop, ButtonToggle}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

type fakeLED struct{ on chan bool }

func (f *fakeLED) High() { f.on <- true }
func (f *fakeLED) Low()  { f.on <- false }

func TestRunDrivesLEDAndPresses(t *testing.T) {
	pressed := make(chan Button, 1)
	p := newPad(0, func(b Button) { pressed <- b })
	l := &fakeLED{on: make(chan bool, 4)}
	p.led = l

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SetScanning(true)
	if on := <-l.on; !on {
		t.Fatalf("led not lit")
	}
	p.press(ButtonLibrary)
	select {
	case b := <-pressed:
		if b != ButtonLibrary {
			t.Fatalf("pressed %v", b)
		}
	case <-time.After(time.Second):
		t.Fatalf("press not dispatched")
	}
	p.SetScanning(false)
	if on := <-l.on; on {
		t.Fatalf("led not cleared")
	}
}

func TestNewWithoutPins(t *testing.T) {
	p, err := New(Config{}, nil)
	if p != nil || err != nil {
		t.Fatalf("New = %v, %v", p, err)
	}
}
