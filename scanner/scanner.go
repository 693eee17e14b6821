package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LibraryKind identifies one of the three decoding library slots a session
// can run on.
type LibraryKind int

const (
	Html5 LibraryKind = iota // push-callback library with its own capture loop
	JsQR                     // pull loop over raw frames + synchronous decode
	ZXing                    // event-emitting scanner object
)

// Kinds lists every library slot in selection order.
var Kinds = []LibraryKind{Html5, JsQR, ZXing}

// String returns the display name of the library.
func (k LibraryKind) String() string {
	switch k {
	case Html5:
		return "HTML5-QRCode"
	case JsQR:
		return "jsQR"
	case ZXing:
		return "ZXing"
	default:
		return "Unknown"
	}
}

// Key returns the short configuration key ("html5", "jsqr", "zxing").
func (k LibraryKind) Key() string {
	switch k {
	case Html5:
		return "html5"
	case JsQR:
		return "jsqr"
	case ZXing:
		return "zxing"
	default:
		return "unknown"
	}
}

// Next returns the library after k, wrapping around.
func (k LibraryKind) Next() LibraryKind {
	return Kinds[(int(k)+1)%len(Kinds)]
}

// Prev returns the library before k, wrapping around.
func (k LibraryKind) Prev() LibraryKind {
	n := len(Kinds)
	return Kinds[(int(k)+n-1)%n]
}

// MarshalText implements encoding.TextMarshaler.
func (k LibraryKind) MarshalText() ([]byte, error) {
	return []byte(k.Key()), nil
}

// ParseLibraryKind accepts either the configuration key or the display name.
func ParseLibraryKind(s string) (LibraryKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == k.Key() || s == strings.ToLower(k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown library %q", s)
}

// Device is a raw camera record as reported by a library, before
// classification.
type Device struct {
	ID    string
	Label string
}

// Advisory texts adapters report through Handlers.OnStatus.
const (
	NoticeScanning  = "Scanning... position QR code in frame"
	NoticeSlowVideo = "Camera loading timeout - please try again"
)

// Handlers holds the callbacks an adapter fires while capturing.
type Handlers struct {
	// OnDecode is called for every recognised payload.
	OnDecode func(content string, timestampMillis int64)

	// OnScanError is called for every frame or poll that produced no payload.
	// It is not fatal and fires continuously during normal operation.
	OnScanError func(message string)

	// OnStatus carries advisory messages (capture became active, slow video).
	OnStatus func(message string)
}

func (h Handlers) decode(content string) {
	if h.OnDecode != nil {
		h.OnDecode(content, time.Now().UnixMilli())
	}
}

func (h Handlers) scanError(message string) {
	if h.OnScanError != nil {
		h.OnScanError(message)
	}
}

func (h Handlers) status(message string) {
	if h.OnStatus != nil {
		h.OnStatus(message)
	}
}

// Adapter is the uniform lifecycle over one decoding library.
//
// Start stops any capture already running on the adapter before opening the
// requested camera, so an adapter never holds two captures. Stop is
// idempotent and releases every media track the adapter acquired.
type Adapter interface {
	Kind() LibraryKind
	Start(ctx context.Context, cameraID string) error
	Stop(ctx context.Context) error
}

// New builds the adapter for kind. It refuses to construct an adapter for a
// library that is not available.
func New(kind LibraryKind, libs Libraries, handlers Handlers) (Adapter, error) {
	if err := libs.Available(kind); err != nil {
		return nil, err
	}

	switch kind {
	case Html5:
		return newCallbackAdapter(libs.Html5, handlers), nil
	case JsQR:
		return newPullAdapter(libs.JsQR, handlers), nil
	case ZXing:
		return newEmitterAdapter(libs.ZXing, handlers), nil
	default:
		return nil, fmt.Errorf("unknown library kind %d", int(kind))
	}
}
