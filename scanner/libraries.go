package scanner

// PullLibrary groups what the pull-loop slot needs: a media source that hands
// out raw frames, a synchronous decoder, and the per-frame scheduler.
type PullLibrary struct {
	Media     MediaDevices
	Decoder   FrameDecoder
	Scheduler FrameScheduler // nil = DefaultFrameRate ticks
}

// Libraries holds the library bound to each slot. A nil entry means the
// library was not loaded.
type Libraries struct {
	Html5 CallbackLibrary
	JsQR  PullLibrary
	ZXing EmitterLibrary
}

// Missing reports every absent library symbol. It is evaluated once at
// startup; adapters for the affected slots are never built.
func (l Libraries) Missing() []*LibraryMissingError {
	var missing []*LibraryMissingError
	if l.Html5 == nil {
		missing = append(missing, &LibraryMissingError{Kind: Html5, Symbol: "Html5Qrcode"})
	}
	if l.JsQR.Decoder == nil {
		missing = append(missing, &LibraryMissingError{Kind: JsQR, Symbol: "jsQR"})
	}
	if l.JsQR.Media == nil {
		missing = append(missing, &LibraryMissingError{Kind: JsQR, Symbol: "mediaDevices"})
	}
	if l.ZXing == nil {
		missing = append(missing, &LibraryMissingError{Kind: ZXing, Symbol: "ZXing"})
	}
	return missing
}

// Available returns the first missing symbol for kind, or nil.
func (l Libraries) Available(kind LibraryKind) error {
	for _, m := range l.Missing() {
		if m.Kind == kind {
			return m
		}
	}
	return nil
}
