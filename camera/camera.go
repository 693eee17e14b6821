package camera

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"qrscan/scanner"
)

// Facing says which way a camera points.
type Facing int

const (
	Unknown Facing = iota
	Front          // user-facing
	Back           // environment-facing
)

func (f Facing) String() string {
	switch f {
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Facing) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Opposite returns Front for Back and Back for anything else.
func (f Facing) Opposite() Facing {
	if f == Back {
		return Front
	}
	return Back
}

// Descriptor is a classified camera. Descriptors are rebuilt on every
// enumeration and never modified afterwards.
type Descriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Facing Facing `json:"facing"`
}

// ErrNoCameras is wrapped by EnumerationError when a library reports an
// empty device list.
var ErrNoCameras = errors.New("no cameras found")

// EnumerationError is returned when the device list cannot be obtained.
type EnumerationError struct {
	Kind   scanner.LibraryKind
	Denied bool // platform refused access, as opposed to a failed or empty listing
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s cameras: %v", e.Kind, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

var (
	frontTokens = []string{"front", "facing front", "user"}
	backTokens  = []string{"back", "rear", "environment"}
)

// FacingFromLabel classifies a single device label by its tokens.
func FacingFromLabel(label string) Facing {
	l := strings.ToLower(label)
	for _, tok := range frontTokens {
		if strings.Contains(l, tok) {
			return Front
		}
	}
	for _, tok := range backTokens {
		if strings.Contains(l, tok) {
			return Back
		}
	}
	return Unknown
}

// Classify turns a raw device list into descriptors.
//
// Labels decide first. When no label matched anything the order is used
// instead: the first device is taken as Back and the second as Front, and a
// lone device is taken as Back. The positional tier is a guess.
func Classify(devices []scanner.Device) []Descriptor {
	out := make([]Descriptor, len(devices))
	labelled := false
	for i, d := range devices {
		out[i] = Descriptor{ID: d.ID, Name: d.Label, Facing: FacingFromLabel(d.Label)}
		if out[i].Facing != Unknown {
			labelled = true
		}
	}

	if !labelled {
		switch {
		case len(out) >= 2:
			out[0].Facing = Back
			out[1].Facing = Front
		case len(out) == 1:
			out[0].Facing = Back
		}
	}
	return out
}

// Reclassify runs the classification pass again over existing descriptors.
func Reclassify(cams []Descriptor) []Descriptor {
	devs := make([]scanner.Device, len(cams))
	for i, c := range cams {
		devs[i] = scanner.Device{ID: c.ID, Label: c.Name}
	}
	return Classify(devs)
}

// FindByID returns the camera with the given id.
func FindByID(cams []Descriptor, id string) (Descriptor, bool) {
	for _, c := range cams {
		if c.ID == id {
			return c, true
		}
	}
	return Descriptor{}, false
}

// FirstWithFacing returns the first camera classified as f.
func FirstWithFacing(cams []Descriptor, f Facing) (Descriptor, bool) {
	for _, c := range cams {
		if c.Facing == f {
			return c, true
		}
	}
	return Descriptor{}, false
}

// HasPair reports whether both a Front and a Back camera are known.
func HasPair(cams []Descriptor) bool {
	_, front := FirstWithFacing(cams, Front)
	_, back := FirstWithFacing(cams, Back)
	return front && back
}

// Registry enumerates the cameras of whichever library is selected.
type Registry struct {
	libs scanner.Libraries
}

// NewRegistry creates a registry over the loaded libraries.
func NewRegistry(libs scanner.Libraries) *Registry {
	return &Registry{libs: libs}
}

// Enumerate lists and classifies the cameras visible to kind.
func (r *Registry) Enumerate(ctx context.Context, kind scanner.LibraryKind) ([]Descriptor, error) {
	if err := r.libs.Available(kind); err != nil {
		return nil, err
	}

	raw, err := r.raw(ctx, kind)
	if err != nil {
		return nil, &EnumerationError{
			Kind:   kind,
			Denied: errors.Is(err, scanner.ErrNotAllowed),
			Err:    err,
		}
	}
	if len(raw) == 0 {
		return nil, &EnumerationError{Kind: kind, Err: ErrNoCameras}
	}

	for i := range raw {
		if raw[i].ID == "" {
			raw[i].ID = "default"
		}
		if raw[i].Label == "" {
			raw[i].Label = "Camera " + raw[i].ID
		}
	}

	cams := Classify(raw)
	for _, c := range cams {
		log.Printf("Camera: %s %q (%s)", c.ID, c.Name, c.Facing)
	}
	return cams, nil
}

func (r *Registry) raw(ctx context.Context, kind scanner.LibraryKind) ([]scanner.Device, error) {
	switch kind {
	case scanner.Html5:
		return r.libs.Html5.Cameras(ctx)

	case scanner.JsQR:
		infos, err := r.libs.JsQR.Media.EnumerateDevices(ctx)
		if err != nil {
			return nil, err
		}
		var devs []scanner.Device
		for _, d := range infos {
			if d.Kind != scanner.KindVideoInput {
				continue
			}
			devs = append(devs, scanner.Device{ID: d.DeviceID, Label: d.Label})
		}
		return devs, nil

	case scanner.ZXing:
		return r.libs.ZXing.Cameras(ctx)

	default:
		return nil, fmt.Errorf("unknown library kind %d", int(kind))
	}
}
