//go:build screen

package video

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/d21d3q/framebuffer"
)

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return true
}

// Video shows status panels on a 16 bpp framebuffer.
type Video struct {
	mu              sync.Mutex
	font            string
	pixBuffer       []byte
	backBuffer      []byte
	width           int
	height          int
	lineLengthBytes int
	initialized     bool
}

// New opens the framebuffer.
func New(cfg Config) (*Video, error) {
	if cfg.Device == "" {
		cfg.Device = "/dev/fb0"
	}
	if cfg.Font == "" {
		cfg.Font = DefaultFont
	}

	fbLowLevel, err := framebuffer.OpenFrameBuffer(cfg.Device, os.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fbLowLevel.VarScreenInfo()
	if err != nil {
		return nil, fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fbLowLevel.FixScreenInfo()
	if err != nil {
		return nil, fmt.Errorf("get fixed screen info: %w", err)
	}

	v := &Video{font: cfg.Font}
	v.pixBuffer, err = fbLowLevel.Pixels()
	if err != nil {
		return nil, fmt.Errorf("get pixel data: %w", err)
	}

	v.width = int(varInfo.XRes)
	v.height = int(varInfo.YRes)
	v.lineLengthBytes = int(fixedInfo.LineLength)
	v.backBuffer = make([]byte, v.height*v.lineLengthBytes)

	log.Printf("Video: framebuffer %dx%d, %d bpp, stride %d bytes",
		v.width, v.height, varInfo.BitsPerPixel, v.lineLengthBytes)

	v.initialized = true
	v.clear()
	return v, nil
}

func (v *Video) clear() {
	for i := range v.pixBuffer {
		v.pixBuffer[i] = 0
	}
}

// Show renders p to the screen.
func (v *Video) Show(p Panel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return
	}
	img := Render(p, v.width, v.height, v.font)
	EncodeRGB565(img, v.lineLengthBytes, v.backBuffer)
	copy(v.pixBuffer, v.backBuffer)
}

// Clear blanks the screen.
func (v *Video) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.initialized {
		v.clear()
	}
}

// Release blanks the screen and stops drawing.
func (v *Video) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clear()
	v.initialized = false
	return nil
}

// Width returns the display width.
func (v *Video) Width() int {
	return v.width
}

// Height returns the display height.
func (v *Video) Height() int {
	return v.height
}
