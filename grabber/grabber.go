package grabber

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"qrscan/scanner"
)

// CameraConfig describes one network camera that serves still snapshots.
type CameraConfig struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	URL       string `yaml:"url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	MaxWidth  int    `yaml:"max_width"`  // largest resolution the camera delivers, 0 = unknown
	MaxHeight int    `yaml:"max_height"` //
}

// Config holds the snapshot cameras and fetch timing.
type Config struct {
	Cameras  []CameraConfig `yaml:"cameras"`
	Interval time.Duration  `yaml:"interval"` // between snapshot fetches, default 200ms
	Timeout  time.Duration  `yaml:"timeout"`  // per request, default 5s
}

// Media exposes HTTP snapshot cameras as a frame-pulling media source.
type Media struct {
	cams     []CameraConfig
	client   *http.Client
	interval time.Duration

	mu   sync.Mutex
	busy map[string]bool
}

// New creates a media source over the configured cameras.
func New(cfg Config) *Media {
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cams := make([]CameraConfig, len(cfg.Cameras))
	for i, c := range cfg.Cameras {
		if c.ID == "" {
			c.ID = fmt.Sprintf("cam%d", i)
		}
		cams[i] = c
	}
	return &Media{
		cams:     cams,
		client:   &http.Client{Timeout: cfg.Timeout},
		interval: cfg.Interval,
		busy:     map[string]bool{},
	}
}

// EnumerateDevices implements scanner.MediaDevices.
func (m *Media) EnumerateDevices(ctx context.Context) ([]scanner.MediaDeviceInfo, error) {
	out := make([]scanner.MediaDeviceInfo, 0, len(m.cams))
	for _, c := range m.cams {
		out = append(out, scanner.MediaDeviceInfo{
			Kind:     scanner.KindVideoInput,
			DeviceID: c.ID,
			Label:    c.Label,
		})
	}
	return out, nil
}

// GetUserMedia implements scanner.MediaDevices. An empty DeviceID picks the
// first camera.
func (m *Media) GetUserMedia(ctx context.Context, c scanner.Constraints) (scanner.MediaStream, error) {
	cam, ok := m.find(c.DeviceID)
	if !ok {
		return nil, fmt.Errorf("camera %q: %w", c.DeviceID, scanner.ErrNotFound)
	}
	if (cam.MaxWidth > 0 && c.Width > cam.MaxWidth) || (cam.MaxHeight > 0 && c.Height > cam.MaxHeight) {
		return nil, fmt.Errorf("camera %s delivers at most %dx%d, asked for %dx%d: %w",
			cam.ID, cam.MaxWidth, cam.MaxHeight, c.Width, c.Height, scanner.ErrOverconstrained)
	}

	m.mu.Lock()
	if m.busy[cam.ID] {
		m.mu.Unlock()
		return nil, fmt.Errorf("camera %s: %w", cam.ID, scanner.ErrNotReadable)
	}
	m.busy[cam.ID] = true
	m.mu.Unlock()

	sctx, cancel := context.WithCancel(context.Background())
	s := &stream{
		media:  m,
		cam:    cam,
		width:  c.Width,
		height: c.Height,
		ctx:    sctx,
		cancel: cancel,
	}
	log.Printf("Grabber: opened %s (%s)", cam.ID, cam.URL)
	return s, nil
}

func (m *Media) find(id string) (CameraConfig, bool) {
	if id == "" && len(m.cams) > 0 {
		return m.cams[0], true
	}
	for _, c := range m.cams {
		if c.ID == id {
			return c, true
		}
	}
	return CameraConfig{}, false
}

func (m *Media) release(id string) {
	m.mu.Lock()
	delete(m.busy, id)
	m.mu.Unlock()
}

// stream is one open snapshot camera. After the first snapshot arrives a
// goroutine keeps refreshing the latest frame until the track is stopped.
type stream struct {
	media         *Media
	cam           CameraConfig
	width, height int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	latest   scanner.Frame
	seq      uint64
	consumed uint64
}

func (s *stream) Tracks() []scanner.Track {
	return []scanner.Track{s}
}

// WaitMetadata fetches the first snapshot, which fixes the frame size.
func (s *stream) WaitMetadata(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	frame, err := s.media.fetch(ctx, s.cam, s.width, s.height)
	if err != nil {
		return err
	}
	s.store(frame)
	log.Printf("Grabber: %s delivers %dx%d", s.cam.ID, frame.Width, frame.Height)

	s.mu.Lock()
	if s.done == nil && s.ctx.Err() == nil {
		s.done = make(chan struct{})
		go s.poll(s.done)
	}
	s.mu.Unlock()
	return nil
}

func (s *stream) poll(done chan struct{}) {
	defer close(done)

	t := time.NewTicker(s.media.interval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
		}

		frame, err := s.media.fetch(s.ctx, s.cam, s.width, s.height)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			failures++
			if failures%10 == 1 {
				log.Printf("Grabber: %s snapshot failed (%d): %v", s.cam.ID, failures, err)
			}
			continue
		}
		failures = 0
		s.store(frame)
	}
}

func (s *stream) store(f scanner.Frame) {
	s.mu.Lock()
	s.latest = f
	s.seq++
	s.mu.Unlock()
}

// ReadFrame returns the newest snapshot, once.
func (s *stream) ReadFrame() (scanner.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == 0 || s.seq == s.consumed {
		return scanner.Frame{}, false
	}
	s.consumed = s.seq
	return s.latest, true
}

// Stop implements scanner.Track.
func (s *stream) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		s.media.release(s.cam.ID)
		log.Printf("Grabber: closed %s", s.cam.ID)
	})
}

func (m *Media) fetch(ctx context.Context, cam CameraConfig, maxW, maxH int) (scanner.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cam.URL, nil)
	if err != nil {
		return scanner.Frame{}, fmt.Errorf("camera %s: %w", cam.ID, err)
	}
	if cam.Username != "" {
		req.SetBasicAuth(cam.Username, cam.Password)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return scanner.Frame{}, fmt.Errorf("camera %s: %w: %v", cam.ID, scanner.ErrNotReadable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return scanner.Frame{}, fmt.Errorf("camera %s: %w: %s", cam.ID, scanner.ErrNotAllowed, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return scanner.Frame{}, fmt.Errorf("camera %s: %w: %s", cam.ID, scanner.ErrNotFound, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return scanner.Frame{}, fmt.Errorf("camera %s: %w: %s", cam.ID, scanner.ErrNotReadable, resp.Status)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return scanner.Frame{}, fmt.Errorf("camera %s: decode snapshot: %w", cam.ID, err)
	}

	rgba := fit(img, maxW, maxH)
	return scanner.Frame{Pix: rgba.Pix, Width: rgba.Rect.Dx(), Height: rgba.Rect.Dy()}, nil
}
