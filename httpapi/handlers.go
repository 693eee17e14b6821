package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"qrscan/camera"
	"qrscan/scanner"
)

type handlers struct {
	s Session
}

type scanView struct {
	Date    int64  `json:"date"`
	Content string `json:"content"`
	Href    string `json:"href,omitempty"`
}

type errorView struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("HTTP: encode response: %v", err)
	}
}

// writeResult answers an operation with the state it left behind, or the
// error that stopped it.
func (h *handlers) writeResult(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, h.s.State())
		return
	}

	code := http.StatusInternalServerError
	view := errorView{Error: err.Error()}

	var se *scanner.StartError
	var ee *camera.EnumerationError
	var missing *scanner.LibraryMissingError
	switch {
	case errors.As(err, &se):
		view.Reason = se.Reason.String()
		switch se.Reason {
		case scanner.ReasonNotFound:
			code = http.StatusNotFound
		case scanner.ReasonDenied:
			code = http.StatusForbidden
		default:
			code = http.StatusConflict
		}
	case errors.As(err, &missing):
		code = http.StatusServiceUnavailable
	case errors.As(err, &ee) && ee.Denied:
		code = http.StatusForbidden
	case errors.Is(err, camera.ErrNoCameras):
		code = http.StatusNotFound
	}
	writeJSON(w, code, view)
}

func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.s.State())
}

// getScans lists results newest first. ?limit=n trims the list.
func (h *handlers) getScans(w http.ResponseWriter, r *http.Request) {
	recs := h.s.Scans()
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		if n < len(recs) {
			recs = recs[:n]
		}
	}

	out := make([]scanView, 0, len(recs))
	for _, rec := range recs {
		v := scanView{Date: rec.TimestampMillis, Content: rec.Content}
		if href, ok := rec.Href(); ok {
			v.Href = href
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) selectLibrary(w http.ResponseWriter, r *http.Request) {
	kind, err := scanner.ParseLibraryKind(mux.Vars(r)["kind"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: err.Error()})
		return
	}
	h.writeResult(w, h.s.SelectLibrary(r.Context(), kind))
}

func (h *handlers) selectCamera(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.s.SelectCameraByID(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) toggleCamera(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.s.ToggleCamera(r.Context()))
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.s.Stop(r.Context()))
}
