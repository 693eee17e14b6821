package grabber

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"qrscan/scanner"
)

func qrImage(t *testing.T, text string) image.Image {
	t.Helper()
	mat, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	if err != nil {
		t.Fatalf("encode qr: %v", err)
	}
	return mat
}

func qrPNG(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, qrImage(t, text)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func snapshotServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFit(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 410, 210))

	got := fit(src, 100, 100)
	if got.Rect != image.Rect(0, 0, 100, 50) {
		t.Fatalf("scaled bounds = %v", got.Rect)
	}

	same := fit(src, 0, 0)
	if same.Rect != image.Rect(0, 0, 400, 200) {
		t.Fatalf("unconstrained bounds = %v", same.Rect)
	}
}

func TestDecoder(t *testing.T) {
	d := NewDecoder()

	rgba := fit(qrImage(t, "HELLO"), 0, 0)
	text, err := d.Decode(rgba.Pix, rgba.Rect.Dx(), rgba.Rect.Dy())
	if err != nil || text != "HELLO" {
		t.Fatalf("Decode = %q, %v", text, err)
	}

	blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	if _, err := d.Decode(blank.Pix, 64, 64); !errors.Is(err, scanner.ErrNoCode) {
		t.Fatalf("blank frame: %v", err)
	}

	if _, err := d.Decode(make([]byte, 3), 2, 2); err == nil {
		t.Fatalf("short frame accepted")
	}
}

func TestMediaStreamLifecycle(t *testing.T) {
	srv := snapshotServer(t, qrPNG(t, "HELLO"))
	m := New(Config{
		Cameras:  []CameraConfig{{ID: "door", Label: "Door camera", URL: srv.URL, MaxWidth: 640, MaxHeight: 480}},
		Interval: time.Hour,
	})
	ctx := context.Background()

	devs, err := m.EnumerateDevices(ctx)
	if err != nil || len(devs) != 1 || devs[0].Kind != scanner.KindVideoInput || devs[0].Label != "Door camera" {
		t.Fatalf("EnumerateDevices = %+v, %v", devs, err)
	}

	if _, err := m.GetUserMedia(ctx, scanner.Constraints{DeviceID: "door", Width: 1280, Height: 720}); !errors.Is(err, scanner.ErrOverconstrained) {
		t.Fatalf("expected ErrOverconstrained, got %v", err)
	}
	if _, err := m.GetUserMedia(ctx, scanner.Constraints{DeviceID: "garage"}); !errors.Is(err, scanner.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s, err := m.GetUserMedia(ctx, scanner.Constraints{DeviceID: "door"})
	if err != nil {
		t.Fatalf("GetUserMedia: %v", err)
	}
	if _, err := m.GetUserMedia(ctx, scanner.Constraints{DeviceID: "door"}); !errors.Is(err, scanner.ErrNotReadable) {
		t.Fatalf("expected ErrNotReadable while busy, got %v", err)
	}

	if _, ok := s.ReadFrame(); ok {
		t.Fatalf("frame available before metadata")
	}
	if err := s.WaitMetadata(ctx); err != nil {
		t.Fatalf("WaitMetadata: %v", err)
	}
	f, ok := s.ReadFrame()
	if !ok || f.Width != 240 || f.Height != 240 {
		t.Fatalf("ReadFrame = %dx%d, %v", f.Width, f.Height, ok)
	}
	if _, ok := s.ReadFrame(); ok {
		t.Fatalf("same frame returned twice")
	}

	for _, tr := range s.Tracks() {
		tr.Stop()
		tr.Stop()
	}

	again, err := m.GetUserMedia(ctx, scanner.Constraints{DeviceID: "door"})
	if err != nil {
		t.Fatalf("camera not released: %v", err)
	}
	again.Tracks()[0].Stop()
}

func TestMetadataUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := New(Config{Cameras: []CameraConfig{{ID: "door", URL: srv.URL}}})
	s, err := m.GetUserMedia(context.Background(), scanner.Constraints{})
	if err != nil {
		t.Fatalf("GetUserMedia: %v", err)
	}
	defer s.Tracks()[0].Stop()

	if err := s.WaitMetadata(context.Background()); !errors.Is(err, scanner.ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
}

func TestBasicAuth(t *testing.T) {
	body := qrPNG(t, "x")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != "admin" || p != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	m := New(Config{Cameras: []CameraConfig{{ID: "door", URL: srv.URL, Username: "admin", Password: "secret"}}})
	s, err := m.GetUserMedia(context.Background(), scanner.Constraints{DeviceID: "door"})
	if err != nil {
		t.Fatalf("GetUserMedia: %v", err)
	}
	defer s.Tracks()[0].Stop()
	if err := s.WaitMetadata(context.Background()); err != nil {
		t.Fatalf("WaitMetadata: %v", err)
	}
}

func TestPullLoopDecodesSnapshot(t *testing.T) {
	srv := snapshotServer(t, qrPNG(t, "HELLO"))
	m := New(Config{Cameras: []CameraConfig{{ID: "door", URL: srv.URL, MaxWidth: 640, MaxHeight: 480}}})

	got := make(chan string, 4)
	a, err := scanner.New(scanner.JsQR,
		scanner.Libraries{JsQR: scanner.PullLibrary{Media: m, Decoder: NewDecoder()}},
		scanner.Handlers{OnDecode: func(content string, ts int64) {
			select {
			case got <- content:
			default:
			}
		}})
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx, "door"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(ctx)

	select {
	case text := <-got:
		if text != "HELLO" {
			t.Fatalf("decoded %q", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no code decoded")
	}
}
