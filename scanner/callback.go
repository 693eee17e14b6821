package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// CaptureConfig is what a push-style library is asked to honour. Zero
// Width/Height leaves the resolution unconstrained.
type CaptureConfig struct {
	FPS    int
	Width  int
	Height int
}

// CallbackLibrary is a library that owns its capture loop and pushes results
// through callbacks.
type CallbackLibrary interface {
	// Cameras lists the capture devices the library can open.
	Cameras(ctx context.Context) ([]Device, error)

	// NewScanner creates an idle scanner instance.
	NewScanner() CallbackScanner
}

// CallbackScanner is one scanner instance of a CallbackLibrary.
type CallbackScanner interface {
	Start(ctx context.Context, cameraID string, cfg CaptureConfig, onDecode func(text string), onError func(message string)) error
	Stop(ctx context.Context) error
	IsScanning() bool
}

type callbackAdapter struct {
	mu      sync.Mutex
	scanner CallbackScanner
	h       Handlers
}

func newCallbackAdapter(lib CallbackLibrary, h Handlers) *callbackAdapter {
	return &callbackAdapter{scanner: lib.NewScanner(), h: h}
}

func (a *callbackAdapter) Kind() LibraryKind { return Html5 }

func (a *callbackAdapter) Start(ctx context.Context, cameraID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scanner.IsScanning() {
		log.Printf("%s: scanner is already running, stopping first", Html5)
		if err := a.scanner.Stop(ctx); err != nil {
			return toStartError(fmt.Errorf("stop previous scan: %w", err))
		}
	}

	err := startWithFallback(Html5, func(minimal bool) error {
		cfg := CaptureConfig{FPS: 10, Width: 1280, Height: 720}
		if minimal {
			cfg = CaptureConfig{FPS: 10}
		}
		return a.scanner.Start(ctx, cameraID, cfg, a.h.decode, a.h.scanError)
	})
	if err != nil {
		// Release whatever a half-finished start acquired.
		if a.scanner.IsScanning() {
			_ = a.scanner.Stop(ctx)
		}
		return toStartError(err)
	}

	log.Printf("%s: scanner started on camera %s", Html5, cameraID)
	return nil
}

func (a *callbackAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.scanner.IsScanning() {
		return nil
	}
	if err := a.scanner.Stop(ctx); err != nil {
		return fmt.Errorf("stop %s scanner: %w", Html5, err)
	}
	log.Printf("%s: scanner stopped", Html5)
	return nil
}
