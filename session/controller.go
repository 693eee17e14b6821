package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"qrscan/camera"
	"qrscan/results"
	"qrscan/scanner"
)

// Phase is the controller's lifecycle position.
type Phase int

const (
	Idle Phase = iota
	Enumerating
	Starting
	Scanning
	Stopping
	Error
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Enumerating:
		return "enumerating"
	case Starting:
		return "starting"
	case Scanning:
		return "scanning"
	case Stopping:
		return "stopping"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a snapshot of the session.
type State struct {
	Library        scanner.LibraryKind `json:"library"`
	LibraryStatus  string              `json:"library_status"`
	Missing        []string            `json:"missing,omitempty"`
	Phase          Phase               `json:"phase"`
	Status         string              `json:"status"`
	IsScanning     bool                `json:"is_scanning"`
	ActiveCameraID string              `json:"active_camera_id,omitempty"`
	FacingMode     camera.Facing       `json:"facing_mode"`
	Cameras        []camera.Descriptor `json:"cameras"`
}

// Enumerator lists the cameras of a library.
type Enumerator interface {
	Enumerate(ctx context.Context, kind scanner.LibraryKind) ([]camera.Descriptor, error)
}

// AdapterFactory builds the adapter for a library.
type AdapterFactory func(kind scanner.LibraryKind, h scanner.Handlers) (scanner.Adapter, error)

// Haptic produces a short physical pulse. It must not block for long.
type Haptic interface {
	Pulse(d time.Duration)
}

const hapticPulse = 200 * time.Millisecond

// Options configure a Controller. Zero values fall back to the registry and
// adapters built over the libraries passed to New.
type Options struct {
	// AutoStart starts the Back camera (or the first one) right after a
	// library's cameras are enumerated.
	AutoStart bool

	Haptic     Haptic
	History    *results.History
	Enumerator Enumerator
	NewAdapter AdapterFactory
}

// Controller owns the active adapter, the camera list and the scan history.
//
// Every operation that changes the session (SelectLibrary, SelectCamera,
// ToggleCamera, Stop, Close) runs under op, so a second request waits for the
// in-flight start or stop to finish and two adapters never hold cameras at
// once. Decode and scan-error callbacks only take mu and therefore never wait
// on an operation.
type Controller struct {
	enum       Enumerator
	newAdapter AdapterFactory
	history    *results.History
	haptic     Haptic
	autoStart  bool
	missing    []*scanner.LibraryMissingError

	op sync.Mutex

	// notifyMu orders deliveries so subscribers see snapshots one at a
	// time, never an older one after a newer one.
	notifyMu sync.Mutex

	mu       sync.RWMutex // guards the fields below
	state    State
	adapter  scanner.Adapter
	gen      uint64 // bumped whenever the adapter is replaced
	errCount int
	subs     []func(State)
}

// New creates a controller in the Idle phase. Missing libraries are reported
// once here.
func New(libs scanner.Libraries, opts Options) *Controller {
	c := &Controller{
		enum:       opts.Enumerator,
		newAdapter: opts.NewAdapter,
		history:    opts.History,
		haptic:     opts.Haptic,
		autoStart:  opts.AutoStart,
	}
	if c.enum == nil {
		c.enum = camera.NewRegistry(libs)
	}
	if c.newAdapter == nil {
		c.newAdapter = func(kind scanner.LibraryKind, h scanner.Handlers) (scanner.Adapter, error) {
			return scanner.New(kind, libs, h)
		}
	}
	if c.history == nil {
		c.history = results.NewHistory()
	}

	missing := libs.Missing()
	c.missing = missing
	for _, m := range missing {
		log.Printf("Session: %v", m)
		c.state.Missing = append(c.state.Missing, m.Symbol)
	}
	c.state.LibraryStatus = librarySummary(missing)
	c.state.Status = StatusSelectLibrary
	if allMissing(missing) {
		c.state.Status = StatusLibrariesError
	}
	c.state.FacingMode = camera.Back
	return c
}

func allMissing(missing []*scanner.LibraryMissingError) bool {
	seen := map[scanner.LibraryKind]bool{}
	for _, m := range missing {
		seen[m.Kind] = true
	}
	return len(seen) == len(scanner.Kinds)
}

// Subscribe registers fn to receive a snapshot after every state change.
// Calls are serialized. fn may read State but must not start or stop the
// session.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Scans returns the decoded payloads, newest first.
func (c *Controller) Scans() []results.Record {
	return c.history.All()
}

// History returns the underlying result log.
func (c *Controller) History() *results.History {
	return c.history
}

// HasMultipleCameras reports whether switching cameras makes sense.
func (c *Controller) HasMultipleCameras() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.state.Cameras) >= 2 || camera.HasPair(c.state.Cameras)
}

// SelectLibrary tears down the current adapter, builds one for kind and
// enumerates its cameras.
func (c *Controller) SelectLibrary(ctx context.Context, kind scanner.LibraryKind) error {
	c.op.Lock()
	defer c.op.Unlock()

	log.Printf("Session: switching to library %s", kind)
	c.stopAdapter(ctx)

	c.mu.Lock()
	c.adapter = nil
	c.gen++
	gen := c.gen
	c.errCount = 0
	c.state.Library = kind
	c.state.Cameras = nil
	c.state.ActiveCameraID = ""
	c.state.IsScanning = false
	c.state.Phase = Enumerating
	c.state.Status = fmt.Sprintf("Initializing %s...", kind)
	c.mu.Unlock()
	c.notify()

	adapter, err := c.newAdapter(kind, c.handlersFor(gen))
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.adapter = adapter
	c.mu.Unlock()
	c.setStatus(StatusGettingCameras)

	cams, err := c.enum.Enumerate(ctx, kind)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.state.Cameras = cams
	c.state.Phase = Idle
	c.state.Status = StatusSelectCamera
	c.mu.Unlock()
	c.notify()

	if !c.autoStart {
		return nil
	}

	cam, ok := camera.FirstWithFacing(cams, camera.Back)
	if !ok {
		cam = cams[0]
	}
	return c.start(ctx, cam, c.facingFor(cam))
}

// SelectCamera starts capturing from cam, which must come from the last
// enumeration.
func (c *Controller) SelectCamera(ctx context.Context, cam camera.Descriptor) error {
	return c.SelectCameraByID(ctx, cam.ID)
}

// SelectCameraByID starts capturing from the enumerated camera with id.
func (c *Controller) SelectCameraByID(ctx context.Context, id string) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.RLock()
	cam, ok := camera.FindByID(c.state.Cameras, id)
	c.mu.RUnlock()
	if !ok {
		log.Printf("Session: camera not found: %s", id)
		c.mu.Lock()
		c.state.Phase = Error
		c.state.IsScanning = false
		c.state.Status = StatusCameraNotFound
		c.mu.Unlock()
		c.notify()
		return &scanner.StartError{Reason: scanner.ReasonNotFound, Err: fmt.Errorf("camera %q: %w", id, scanner.ErrNotFound)}
	}

	return c.start(ctx, cam, c.facingFor(cam))
}

// ToggleCamera switches between the Front and Back cameras. When the
// opposite camera is unknown it falls back to the first camera, facing Back.
func (c *Controller) ToggleCamera(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	cams := c.state.Cameras
	if !camera.HasPair(cams) {
		cams = camera.Reclassify(cams)
		c.state.Cameras = cams
	}
	target := c.state.FacingMode.Opposite()
	c.mu.Unlock()

	cam, ok := camera.FirstWithFacing(cams, target)
	if !ok {
		if len(cams) == 0 {
			log.Printf("Session: no cameras available for switching")
			c.setStatus(StatusNoSwitch)
			return &camera.EnumerationError{Kind: c.State().Library, Err: camera.ErrNoCameras}
		}
		log.Printf("Session: %s camera not found, falling back to first available camera", target)
		cam = cams[0]
		target = camera.Back
	}

	log.Printf("Session: switching camera to %s (%s)", cam.ID, target)
	return c.start(ctx, cam, target)
}

// Stop ends capture. It is valid in every phase and always ends in Idle.
func (c *Controller) Stop(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	err := c.stopAdapter(ctx)

	c.mu.Lock()
	wasActive := c.state.IsScanning || c.state.Phase != Idle
	c.state.Phase = Idle
	c.state.IsScanning = false
	if wasActive {
		c.state.Status = StatusStopped
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// Close stops capture and drops the adapter. Call it on teardown.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Stop(ctx)

	c.op.Lock()
	c.mu.Lock()
	c.adapter = nil
	c.gen++
	c.mu.Unlock()
	c.op.Unlock()
	return err
}

// start must be called with op held.
func (c *Controller) start(ctx context.Context, cam camera.Descriptor, facing camera.Facing) error {
	c.mu.Lock()
	adapter := c.adapter
	if adapter == nil {
		c.mu.Unlock()
		return c.fail(c.noAdapterErr())
	}
	c.state.ActiveCameraID = cam.ID
	c.state.FacingMode = facing
	c.state.Phase = Starting
	c.state.IsScanning = false
	c.state.Status = StatusStartingCamera
	c.mu.Unlock()
	c.notify()

	log.Printf("Session: starting camera %s (%q, %s)", cam.ID, cam.Name, facing)
	if err := adapter.Start(ctx, cam.ID); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.state.Phase = Scanning
	c.state.IsScanning = true
	if c.state.Status == StatusStartingCamera {
		c.state.Status = StatusScanning
	}
	c.mu.Unlock()
	c.notify()
	log.Printf("Session: %s scanner started", adapter.Kind())
	return nil
}

// noAdapterErr must be called with mu held.
func (c *Controller) noAdapterErr() error {
	for _, m := range c.missing {
		if m.Kind == c.state.Library {
			return m
		}
	}
	return fmt.Errorf("no %s scanner initialised, select a library first", c.state.Library)
}

// stopAdapter must be called with op held. The adapter is kept so the same
// library can be restarted on another camera.
func (c *Controller) stopAdapter(ctx context.Context) error {
	c.mu.Lock()
	adapter := c.adapter
	if adapter == nil {
		c.mu.Unlock()
		return nil
	}
	c.state.Phase = Stopping
	c.mu.Unlock()
	c.notify()

	if err := adapter.Stop(ctx); err != nil {
		log.Printf("Session: failed to stop %s scanner: %v", adapter.Kind(), err)
		return err
	}
	return nil
}

// fail records err as the session status and returns it.
func (c *Controller) fail(err error) error {
	status := statusForError(err)
	log.Printf("Session: %v", err)

	c.mu.Lock()
	c.state.Phase = Error
	c.state.IsScanning = false
	c.state.Status = status
	c.mu.Unlock()
	c.notify()
	return err
}

// facingFor derives the facing of cam: its classification first, then its
// name, then whatever the session already had.
func (c *Controller) facingFor(cam camera.Descriptor) camera.Facing {
	if cam.Facing != camera.Unknown {
		return cam.Facing
	}
	if f := camera.FacingFromLabel(cam.Name); f != camera.Unknown {
		return f
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.FacingMode
}

func (c *Controller) handlersFor(gen uint64) scanner.Handlers {
	return scanner.Handlers{
		OnDecode: func(content string, ts int64) {
			c.handleDecode(gen, content, ts)
		},
		OnScanError: func(message string) {
			c.handleScanError(gen, message)
		},
		OnStatus: func(message string) {
			c.handleStatus(gen, message)
		},
	}
}

func (c *Controller) handleDecode(gen uint64, content string, ts int64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.history.Add(ts, content)
	c.state.Status = StatusScanned
	c.mu.Unlock()

	log.Printf("Session: QR code detected: %q", content)
	c.notify()

	if c.haptic != nil {
		c.haptic.Pulse(hapticPulse)
	}
}

func (c *Controller) handleScanError(gen uint64, message string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.errCount++
	n := c.errCount
	c.state.Status = classifyScanError(message)
	c.mu.Unlock()

	if n%10 == 0 {
		log.Printf("Session: scan attempt failed (%d so far): %s", n, message)
	}
	c.notify()
}

func (c *Controller) handleStatus(gen uint64, message string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state.Status = message
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	c.state.Status = status
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Cameras = append([]camera.Descriptor(nil), c.state.Cameras...)
	s.Missing = append([]string(nil), c.state.Missing...)
	return s
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.RLock()
	subs := c.subs
	s := c.snapshotLocked()
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(s)
	}
}
