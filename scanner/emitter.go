package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Event names raised by an EmitterScanner.
const (
	EventScan     = "scan"
	EventActive   = "active"
	EventInactive = "inactive"
)

// EmitterOptions configures a new EmitterScanner.
type EmitterOptions struct {
	Continuous   bool
	Mirror       bool
	CaptureImage bool
	Width        int // 0 = unconstrained
	Height       int
}

// EmitterLibrary is a library that delegates capture and decode to a scanner
// object raising named events.
type EmitterLibrary interface {
	Cameras(ctx context.Context) ([]Device, error)
	NewScanner(opts EmitterOptions) EmitterScanner
}

// EmitterScanner is one event-emitting scanner. For EventScan the payload is
// the decoded content; other events carry an empty payload.
type EmitterScanner interface {
	On(event string, fn func(payload string))
	Start(ctx context.Context, cam Device) error
	Stop(ctx context.Context) error
}

type emitterAdapter struct {
	lib EmitterLibrary
	h   Handlers

	mu      sync.Mutex
	scanner EmitterScanner
}

func newEmitterAdapter(lib EmitterLibrary, h Handlers) *emitterAdapter {
	return &emitterAdapter{lib: lib, h: h}
}

func (a *emitterAdapter) Kind() LibraryKind { return ZXing }

func (a *emitterAdapter) Start(ctx context.Context, cameraID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.stopLocked(ctx); err != nil {
		log.Printf("%s: failed to stop previous scanner: %v", ZXing, err)
	}

	cams, err := a.lib.Cameras(ctx)
	if err != nil {
		return toStartError(fmt.Errorf("list cameras: %w", err))
	}
	var cam Device
	found := false
	for _, c := range cams {
		if c.ID == cameraID {
			cam, found = c, true
			break
		}
	}
	if !found {
		return &StartError{Reason: ReasonNotFound, Err: fmt.Errorf("camera %q: %w", cameraID, ErrNotFound)}
	}

	err = startWithFallback(ZXing, func(minimal bool) error {
		opts := EmitterOptions{Continuous: true, Width: 1280, Height: 720}
		if minimal {
			opts = EmitterOptions{Continuous: true}
		}
		s := a.lib.NewScanner(opts)
		a.bind(s)
		if err := s.Start(ctx, cam); err != nil {
			_ = s.Stop(ctx)
			return err
		}
		a.scanner = s
		return nil
	})
	if err != nil {
		return toStartError(err)
	}

	log.Printf("%s: scanner started on camera %s", ZXing, cameraID)
	return nil
}

func (a *emitterAdapter) bind(s EmitterScanner) {
	s.On(EventScan, func(content string) {
		a.h.decode(content)
	})
	s.On(EventActive, func(string) {
		log.Printf("%s: scanner active", ZXing)
		a.h.status(NoticeScanning)
	})
	s.On(EventInactive, func(string) {
		log.Printf("%s: scanner inactive", ZXing)
	})
}

func (a *emitterAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(ctx)
}

func (a *emitterAdapter) stopLocked(ctx context.Context) error {
	if a.scanner == nil {
		return nil
	}
	s := a.scanner
	a.scanner = nil
	if err := s.Stop(ctx); err != nil {
		return fmt.Errorf("stop %s scanner: %w", ZXing, err)
	}
	log.Printf("%s: scanner stopped", ZXing)
	return nil
}
