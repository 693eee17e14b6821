package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"qrscan/camera"
	"qrscan/eventpipe"
	"qrscan/indicator"
	"qrscan/results"
	"qrscan/scanner"
	"qrscan/session"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(strings.NewReader("library: jsqr\nhttp:\n  listen: \":8080\"\n"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !strings.HasPrefix(cfg.ClientID, "qrscan-") {
		t.Fatalf("client id = %q", cfg.ClientID)
	}
	if cfg.AutoStart == nil || !*cfg.AutoStart {
		t.Fatalf("auto start should default on")
	}
	if cfg.PingInterval != 120*time.Second {
		t.Fatalf("ping interval = %v", cfg.PingInterval)
	}
	if cfg.Library != "jsqr" || cfg.HTTP.Listen != ":8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigEmptyAndInvalid(t *testing.T) {
	if _, err := loadConfig(strings.NewReader("")); err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if _, err := loadConfig(strings.NewReader("client_id: [")); err == nil {
		t.Fatalf("broken yaml accepted")
	}
}

func TestControlSignature(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("sekrit"))
	hexSig, b64Sig, err := signControlRequest(secret, "library", "zxing", 1700000000)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for _, sig := range []string{hexSig, b64Sig} {
		if err := verifySignature(secret, "library", "zxing", 1700000000, sig); err != nil {
			t.Fatalf("verify %q: %v", sig, err)
		}
	}
	if err := verifySignature(secret, "library", "html5", 1700000000, hexSig); err == nil {
		t.Fatalf("changed argument verified")
	}
	if err := verifySignature(secret, "library", "zxing", 1700000001, hexSig); err == nil {
		t.Fatalf("changed timestamp verified")
	}
	if _, _, err := signControlRequest("", "stop", "", 0); err == nil {
		t.Fatalf("empty secret accepted")
	}
}

func TestParseControl(t *testing.T) {
	cmd, err := parseControl("library", "zxing")
	if err != nil || cmd.Op != eventpipe.OpLibrary || cmd.Library != scanner.ZXing {
		t.Fatalf("library = %+v, %v", cmd, err)
	}
	cmd, err = parseControl("camera", "front door")
	if err != nil || cmd.CameraID != "front door" {
		t.Fatalf("camera = %+v, %v", cmd, err)
	}
	if _, err := parseControl("library", "nope"); err == nil {
		t.Fatalf("unknown library accepted")
	}
	if _, err := parseControl("open", ""); err == nil {
		t.Fatalf("unknown verb accepted")
	}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakePublisher) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	f.msgs = append(f.msgs, topic+" "+string(payload))
	f.mu.Unlock()
	return nil
}

type recordingIndicator struct {
	indicator.Noop
	calls []string
}

func (r *recordingIndicator) Idle(info *indicator.Info)     { r.calls = append(r.calls, "idle") }
func (r *recordingIndicator) Busy(info *indicator.Info)     { r.calls = append(r.calls, "busy") }
func (r *recordingIndicator) Scanning(info *indicator.Info) { r.calls = append(r.calls, "scanning") }
func (r *recordingIndicator) Failed(info *indicator.Info)   { r.calls = append(r.calls, "failed") }
func (r *recordingIndicator) Decoded(info *indicator.Info) {
	r.calls = append(r.calls, "decoded:"+info.Content+":"+info.Href)
}

func TestReporter(t *testing.T) {
	pub := &fakePublisher{}
	ind := &recordingIndicator{}
	history := results.NewHistory()
	r := newReporter("node1", pub, ind, history)

	st := session.State{Library: scanner.JsQR, Phase: session.Starting, Status: "Starting camera..."}
	r.update(st)
	st.Phase, st.Status, st.IsScanning, st.ActiveCameraID = session.Scanning, "Scanning...", true, "cam1"
	r.update(st)

	// Repeated scan errors leave one state message.
	st.Status = "No QR code detected"
	r.update(st)
	r.update(st)

	history.Add(1000, "example.com")
	st.Status = "QR Code successfully scanned!"
	r.update(st)

	wantCalls := "busy,scanning,decoded:example.com:http://example.com"
	if got := strings.Join(ind.calls, ","); got != wantCalls {
		t.Fatalf("indicator calls = %s, want %s", got, wantCalls)
	}

	var states, scans int
	for _, m := range pub.msgs {
		switch {
		case strings.HasPrefix(m, "qrscan/status/node/node1/state "):
			states++
		case strings.HasPrefix(m, "qrscan/status/node/node1/scan "):
			scans++
			var sr scanReport
			if err := json.Unmarshal([]byte(strings.SplitN(m, " ", 2)[1]), &sr); err != nil {
				t.Fatalf("decode scan: %v", err)
			}
			if sr.Content != "example.com" || sr.Href != "http://example.com" || sr.Date != 1000 {
				t.Fatalf("scan report = %+v", sr)
			}
		}
	}
	if states != 4 || scans != 1 {
		t.Fatalf("published %d states and %d scans: %v", states, scans, pub.msgs)
	}

	r.redraw(st)
	if ind.calls[len(ind.calls)-1] != "scanning" {
		t.Fatalf("redraw did not repaint: %v", ind.calls)
	}
}

type stubEnumerator struct{}

func (stubEnumerator) Enumerate(ctx context.Context, kind scanner.LibraryKind) ([]camera.Descriptor, error) {
	return []camera.Descriptor{{ID: "node-cam", Name: "Dock", Facing: camera.Back}}, nil
}

// gatedAdapter holds Start open until release is closed, like a remote
// node that has not answered yet.
type gatedAdapter struct {
	kind    scanner.LibraryKind
	started chan struct{}
	release chan struct{}
}

func (a *gatedAdapter) Kind() scanner.LibraryKind { return a.kind }

func (a *gatedAdapter) Start(ctx context.Context, cameraID string) error {
	close(a.started)
	select {
	case <-a.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *gatedAdapter) Stop(ctx context.Context) error { return nil }

func TestControlRequestDoesNotBlockDelivery(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("sekrit"))
	gate := &gatedAdapter{kind: scanner.ZXing, started: make(chan struct{}), release: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app := &App{
		cfg:    &Config{ClientID: "node1", ControlSecret: secret},
		ctx:    ctx,
		cancel: cancel,
	}
	app.session = session.New(scanner.Libraries{}, session.Options{
		AutoStart:  true,
		Enumerator: stubEnumerator{},
		NewAdapter: func(kind scanner.LibraryKind, h scanner.Handlers) (scanner.Adapter, error) {
			return gate, nil
		},
	})

	ts := uint64(time.Now().Unix())
	sig, _, err := signControlRequest(secret, "library", "zxing", ts)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	payload, _ := json.Marshal(ControlRequest{Cmd: "library", Arg: "zxing", Timestamp: ts, Signature: sig})

	returned := make(chan struct{})
	go func() {
		app.handleControlRequest(app.controlTopic(), payload)
		close(returned)
	}()

	select {
	case <-gate.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("command never reached the adapter")
	}
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatalf("handler held the delivery goroutine while the start was pending")
	}

	close(gate.release)
	deadline := time.Now().Add(2 * time.Second)
	for app.session.State().Phase != session.Scanning {
		if time.Now().After(deadline) {
			t.Fatalf("state = %+v", app.session.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
