//go:build !screen

package video

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return false
}

// Video is a stub when screen support is not compiled in.
type Video struct{}

// New returns an error when screen support is not compiled in.
func New(cfg Config) (*Video, error) {
	return nil, ErrScreenNotCompiled
}

func (v *Video) Show(p Panel)   {}
func (v *Video) Clear()         {}
func (v *Video) Release() error { return nil }
func (v *Video) Width() int     { return 0 }
func (v *Video) Height() int    { return 0 }
