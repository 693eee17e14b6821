package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"qrscan/scanner"
)

// Scanner is one scanner instance of a Library. It reads codes on its own
// goroutine and reports them through the callbacks given to Start.
type Scanner struct {
	lib *Library

	mu       sync.Mutex
	deviceID string
	src      Source
	cancel   context.CancelFunc
	done     chan struct{}
	shutdown func() error // closes src and frees the device, once
}

// Start implements scanner.CallbackScanner. The FPS in cfg bounds how often
// an idle device is polled; serial scanners have no resolution to constrain.
func (s *Scanner) Start(ctx context.Context, id string, cfg scanner.CaptureConfig, onDecode func(string), onError func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src != nil {
		if !s.finishedLocked() {
			return fmt.Errorf("scanner already running on %s", s.deviceID)
		}
		s.teardownLocked()
	}

	dev, ok := s.lib.lookup(id)
	if !ok {
		return fmt.Errorf("scanner %q: %w", id, scanner.ErrNotFound)
	}
	if !s.lib.claim(id) {
		return fmt.Errorf("scanner %q: %w", id, scanner.ErrNotReadable)
	}

	src, err := s.lib.open(dev)
	if err != nil {
		s.lib.release(id)
		return classifyOpenError(err)
	}

	idle := 100 * time.Millisecond
	if cfg.FPS > 0 {
		idle = time.Second / time.Duration(cfg.FPS)
	}

	var once sync.Once
	var closeErr error
	shutdown := func() error {
		once.Do(func() {
			closeErr = src.Close()
			s.lib.release(id)
		})
		return closeErr
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.deviceID = id
	s.src = src
	s.cancel = cancel
	s.done = make(chan struct{})
	s.shutdown = shutdown
	go s.run(loopCtx, src, idle, onDecode, onError, shutdown, s.done)

	log.Printf("Reader: %s opened (%s %s)", id, dev.Type, dev.Device)
	return nil
}

// run reads until cancelled. A vanished device is released here so another
// scanner can claim it once it comes back.
func (s *Scanner) run(ctx context.Context, src Source, idle time.Duration, onDecode, onError func(string), shutdown func() error, done chan struct{}) {
	defer close(done)

	for {
		code, err := src.ReadCode(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errDeviceGone) {
			shutdown()
			onError("Camera disconnected: " + err.Error())
			return
		}
		if err != nil {
			onError(err.Error())
			continue
		}
		if code == "" {
			time.Sleep(idle)
			continue
		}
		onDecode(code)
	}
}

// Stop implements scanner.CallbackScanner.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		return nil
	}
	return s.teardownLocked()
}

func (s *Scanner) teardownLocked() error {
	s.cancel()
	err := s.shutdown()
	<-s.done

	log.Printf("Reader: %s closed", s.deviceID)
	s.src = nil
	s.cancel = nil
	s.done = nil
	s.shutdown = nil
	s.deviceID = ""
	return err
}

// finishedLocked reports whether the read loop has exited on its own.
func (s *Scanner) finishedLocked() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// IsScanning implements scanner.CallbackScanner. It turns false as soon as
// the device disappears.
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src != nil && !s.finishedLocked()
}
