package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qrscan/camera"
	"qrscan/results"
	"qrscan/scanner"
	"qrscan/session"
)

type fakeSession struct {
	state   session.State
	scans   []results.Record
	calls   []string
	err     error
	library scanner.LibraryKind
}

func (f *fakeSession) State() session.State    { return f.state }
func (f *fakeSession) Scans() []results.Record { return f.scans }

func (f *fakeSession) SelectLibrary(ctx context.Context, kind scanner.LibraryKind) error {
	f.calls = append(f.calls, "library")
	f.library = kind
	return f.err
}

func (f *fakeSession) SelectCameraByID(ctx context.Context, id string) error {
	f.calls = append(f.calls, "camera "+id)
	return f.err
}

func (f *fakeSession) ToggleCamera(ctx context.Context) error {
	f.calls = append(f.calls, "toggle")
	return f.err
}

func (f *fakeSession) Stop(ctx context.Context) error {
	f.calls = append(f.calls, "stop")
	return f.err
}

func serve(s Session, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewRouter(s).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(&fakeSession{}, "GET", "/health")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetState(t *testing.T) {
	s := &fakeSession{state: session.State{
		Library:        scanner.JsQR,
		Phase:          session.Scanning,
		IsScanning:     true,
		ActiveCameraID: "cam1",
		FacingMode:     camera.Back,
	}}
	rec := serve(s, "GET", "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["library"] != "jsqr" || got["active_camera_id"] != "cam1" || got["is_scanning"] != true {
		t.Fatalf("state = %v", got)
	}
}

func TestGetScans(t *testing.T) {
	s := &fakeSession{scans: []results.Record{
		{TimestampMillis: 2, Content: "example.com"},
		{TimestampMillis: 1, Content: "plain text"},
	}}

	rec := serve(s, "GET", "/scans")
	var got []scanView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Href != "http://example.com" || got[1].Href != "" {
		t.Fatalf("scans = %+v", got)
	}

	rec = serve(s, "GET", "/scans?limit=1")
	got = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 || got[0].Date != 2 {
		t.Fatalf("limited scans = %+v", got)
	}

	if rec := serve(s, "GET", "/scans?limit=x"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit code = %d", rec.Code)
	}
}

func TestSelectLibrary(t *testing.T) {
	s := &fakeSession{}
	if rec := serve(s, "POST", "/library/zxing"); rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if s.library != scanner.ZXing {
		t.Fatalf("library = %v", s.library)
	}
	if rec := serve(s, "POST", "/library/nope"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown library code = %d", rec.Code)
	}
}

func TestCameraRoutes(t *testing.T) {
	s := &fakeSession{}
	serve(s, "POST", "/cameras/toggle")
	serve(s, "POST", "/cameras/rear/select")
	serve(s, "POST", "/stop")
	if strings.Join(s.calls, ",") != "toggle,camera rear,stop" {
		t.Fatalf("calls = %v", s.calls)
	}
	if rec := serve(s, "GET", "/stop"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /stop code = %d", rec.Code)
	}
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&scanner.StartError{Reason: scanner.ReasonNotFound, Err: scanner.ErrNotFound}, http.StatusNotFound},
		{&scanner.StartError{Reason: scanner.ReasonDenied, Err: scanner.ErrNotAllowed}, http.StatusForbidden},
		{&scanner.StartError{Reason: scanner.ReasonBusy, Err: scanner.ErrNotReadable}, http.StatusConflict},
		{&camera.EnumerationError{Kind: scanner.Html5, Err: camera.ErrNoCameras}, http.StatusNotFound},
		{&camera.EnumerationError{Kind: scanner.JsQR, Denied: true, Err: scanner.ErrNotAllowed}, http.StatusForbidden},
		{&scanner.LibraryMissingError{Kind: scanner.ZXing}, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		rec := serve(&fakeSession{err: c.err}, "POST", "/cameras/toggle")
		if rec.Code != c.code {
			t.Errorf("%v: code = %d, want %d", c.err, rec.Code, c.code)
		}
	}
}
