// Package httpapi exposes the scan session over a small JSON HTTP API.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"qrscan/results"
	"qrscan/scanner"
	"qrscan/session"
)

// Session is the part of the session controller the API drives.
type Session interface {
	State() session.State
	Scans() []results.Record
	SelectLibrary(ctx context.Context, kind scanner.LibraryKind) error
	SelectCameraByID(ctx context.Context, id string) error
	ToggleCamera(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config holds HTTP listener settings.
type Config struct {
	Listen string `yaml:"listen"` // e.g. ":8080"; empty disables the API
}

// NewRouter builds the API routes for s.
func NewRouter(s Session) *mux.Router {
	h := &handlers{s: s}
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/state", h.getState).Methods("GET")
	r.HandleFunc("/scans", h.getScans).Methods("GET")
	r.HandleFunc("/library/{kind}", h.selectLibrary).Methods("POST")
	r.HandleFunc("/cameras/toggle", h.toggleCamera).Methods("POST")
	r.HandleFunc("/cameras/{id}/select", h.selectCamera).Methods("POST")
	r.HandleFunc("/stop", h.stop).Methods("POST")
	return r
}
