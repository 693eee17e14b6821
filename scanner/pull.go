package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// KindVideoInput is the MediaDeviceInfo kind of a camera.
const KindVideoInput = "videoinput"

// Default pull-loop timings.
const (
	DefaultFrameRate       = 30
	DefaultDecodeCooldown  = 1000 * time.Millisecond
	DefaultMetadataTimeout = 5 * time.Second
)

// MediaDeviceInfo is one entry of a media device listing.
type MediaDeviceInfo struct {
	Kind     string
	DeviceID string
	Label    string
}

// Constraints select a camera stream. Zero Width/Height leaves the
// resolution unconstrained.
type Constraints struct {
	DeviceID string
	Width    int
	Height   int
}

// MediaDevices opens raw camera streams.
type MediaDevices interface {
	EnumerateDevices(ctx context.Context) ([]MediaDeviceInfo, error)
	GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error)
}

// Frame is one RGBA video frame, 4 bytes per pixel, rows packed.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}

// MediaStream is an open camera stream.
type MediaStream interface {
	// Tracks returns every track the stream holds; stopping all of them
	// releases the camera.
	Tracks() []Track

	// WaitMetadata blocks until the stream knows its frame dimensions.
	WaitMetadata(ctx context.Context) error

	// ReadFrame copies the current frame. ok is false while the stream has
	// not buffered enough data.
	ReadFrame() (frame Frame, ok bool)
}

// Track is a single media track.
type Track interface {
	Stop()
}

// FrameDecoder decodes a raw RGBA buffer synchronously. It returns ErrNoCode
// when the frame holds no symbol.
type FrameDecoder interface {
	Decode(pix []byte, width, height int) (string, error)
}

// FrameScheduler is the per-frame redraw primitive the pull loop yields to.
type FrameScheduler interface {
	NextFrame(ctx context.Context) error
}

// FrameInterval is a FrameScheduler that fires at a fixed period.
type FrameInterval time.Duration

// NextFrame implements FrameScheduler.
func (fi FrameInterval) NextFrame(ctx context.Context) error {
	t := time.NewTimer(time.Duration(fi))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type stepResult int

const (
	stepContinue stepResult = iota
	stepCooldown
)

type pullAdapter struct {
	media           MediaDevices
	decoder         FrameDecoder
	sched           FrameScheduler
	h               Handlers
	cooldown        time.Duration
	metadataTimeout time.Duration

	// active gates the scan cycle; clearing it ends the loop at its next step.
	active atomic.Bool

	mu     sync.Mutex // guards stream, cancel, done
	stream MediaStream
	cancel context.CancelFunc
	done   chan struct{}
}

func newPullAdapter(lib PullLibrary, h Handlers) *pullAdapter {
	sched := lib.Scheduler
	if sched == nil {
		sched = FrameInterval(time.Second / DefaultFrameRate)
	}
	return &pullAdapter{
		media:           lib.Media,
		decoder:         lib.Decoder,
		sched:           sched,
		h:               h,
		cooldown:        DefaultDecodeCooldown,
		metadataTimeout: DefaultMetadataTimeout,
	}
}

func (a *pullAdapter) Kind() LibraryKind { return JsQR }

func (a *pullAdapter) Start(ctx context.Context, cameraID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()

	var stream MediaStream
	err := startWithFallback(JsQR, func(minimal bool) error {
		c := Constraints{DeviceID: cameraID, Width: 1280, Height: 720}
		if minimal {
			c = Constraints{DeviceID: cameraID}
		}
		var err error
		stream, err = a.media.GetUserMedia(ctx, c)
		return err
	})
	if err != nil {
		return toStartError(err)
	}

	if err := a.awaitMetadata(ctx, stream); err != nil {
		stopTracks(stream)
		return toStartError(fmt.Errorf("load video metadata: %w", err))
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a.stream = stream
	a.cancel = cancel
	a.done = make(chan struct{})
	a.active.Store(true)
	go a.run(loopCtx, stream, a.done)

	log.Printf("%s: camera stream started on %s", JsQR, cameraID)
	return nil
}

// awaitMetadata waits for the stream dimensions. A slow device gets an
// advisory notice but the wait is not cut short.
func (a *pullAdapter) awaitMetadata(ctx context.Context, stream MediaStream) error {
	slow := time.AfterFunc(a.metadataTimeout, func() {
		log.Printf("%s: video loading timeout", JsQR)
		a.h.status(NoticeSlowVideo)
	})
	defer slow.Stop()
	return stream.WaitMetadata(ctx)
}

func (a *pullAdapter) run(ctx context.Context, stream MediaStream, done chan struct{}) {
	defer close(done)

	for a.active.Load() {
		if err := a.sched.NextFrame(ctx); err != nil {
			return
		}
		if !a.active.Load() {
			return
		}

		if a.step(stream) == stepCooldown {
			t := time.NewTimer(a.cooldown)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

// step runs one scan cycle: pull the current frame, decode it, report.
func (a *pullAdapter) step(stream MediaStream) stepResult {
	frame, ok := stream.ReadFrame()
	if !ok {
		return stepContinue
	}

	content, err := a.decoder.Decode(frame.Pix, frame.Width, frame.Height)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			a.h.scanError("")
		} else {
			a.h.scanError(err.Error())
		}
		return stepContinue
	}

	a.h.decode(content)
	return stepCooldown
}

func (a *pullAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	return nil
}

func (a *pullAdapter) stopLocked() {
	a.active.Store(false)

	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
		a.done = nil
	}

	if a.stream != nil {
		stopTracks(a.stream)
		a.stream = nil
		log.Printf("%s: camera stream stopped", JsQR)
	}
}

func stopTracks(stream MediaStream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
