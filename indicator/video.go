package indicator

import (
	"image"
	"image/color"
	"log"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"qrscan/video"
)

// screen is the part of video.Video the indicator draws on.
type screen interface {
	Show(p video.Panel)
	Release() error
}

var (
	colorIdle     = color.RGBA{0x20, 0x20, 0x20, 0xff}
	colorBusy     = color.RGBA{0xc0, 0xa0, 0x00, 0xff}
	colorScanning = color.RGBA{0x00, 0x50, 0x00, 0xff}
	colorDecoded  = color.RGBA{0xf0, 0xf0, 0xf0, 0xff}
	colorFailed   = color.RGBA{0x90, 0x00, 0x00, 0xff}
	colorLost     = color.RGBA{0x00, 0x00, 0x60, 0xff}
)

// VideoIndicator shows session state on a framebuffer.
type VideoIndicator struct {
	v    screen
	lost bool
}

// NewVideo creates a new video-based indicator.
func NewVideo(cfg video.Config) (*VideoIndicator, error) {
	v, err := video.New(cfg)
	if err != nil {
		return nil, err
	}
	return &VideoIndicator{v: v}, nil
}

func infoLines(info *Info) []string {
	if info == nil {
		return nil
	}
	var lines []string
	if info.Library != "" || info.Camera != "" {
		lines = append(lines, info.Library+" "+info.Camera)
	}
	if info.Status != "" {
		lines = append(lines, info.Status)
	}
	return lines
}

// Idle implements Indicator.Idle.
func (vi *VideoIndicator) Idle(info *Info) {
	if vi.lost {
		vi.ConnectionLost()
		return
	}
	vi.v.Show(video.Panel{Background: colorIdle, Title: "Ready", Lines: infoLines(info)})
}

// Busy implements Indicator.Busy.
func (vi *VideoIndicator) Busy(info *Info) {
	vi.v.Show(video.Panel{Background: colorBusy, Title: "Please wait", Lines: infoLines(info)})
}

// Scanning implements Indicator.Scanning.
func (vi *VideoIndicator) Scanning(info *Info) {
	vi.v.Show(video.Panel{Background: colorScanning, Title: "Scanning", Lines: infoLines(info)})
}

// Decoded implements Indicator.Decoded. The decoded content is redrawn as a
// QR code so it can be scanned off the screen.
func (vi *VideoIndicator) Decoded(info *Info) {
	p := video.Panel{Background: colorDecoded, Title: "Scanned"}
	if info != nil {
		text := info.Content
		if info.Href != "" {
			text = info.Href
		}
		p.Lines = []string{shorten(text, 40)}
		p.Image = qrImage(info.Content)
	}
	vi.v.Show(p)
}

// Failed implements Indicator.Failed.
func (vi *VideoIndicator) Failed(info *Info) {
	vi.v.Show(video.Panel{Background: colorFailed, Title: "Camera error", Lines: infoLines(info)})
}

// ConnectionLost implements Indicator.ConnectionLost.
func (vi *VideoIndicator) ConnectionLost() {
	vi.lost = true
	vi.v.Show(video.Panel{Background: colorLost, Title: "Offline", Lines: []string{"Waiting for broker"}})
}

// Connected implements Indicator.Connected.
func (vi *VideoIndicator) Connected() {
	vi.lost = false
}

// Pulse implements Indicator.Pulse.
func (vi *VideoIndicator) Pulse(d time.Duration) {}

// Shutdown implements Indicator.Shutdown.
func (vi *VideoIndicator) Shutdown() {
	vi.v.Show(video.Panel{Background: color.RGBA{0, 0, 0, 0xff}, Title: "Shutting down"})
}

// Release implements Indicator.Release.
func (vi *VideoIndicator) Release() error {
	return vi.v.Release()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// qrImage encodes content as a QR symbol, or returns nil if it cannot.
func qrImage(content string) image.Image {
	if content == "" {
		return nil
	}
	m, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, 0, 0, nil)
	if err != nil {
		log.Printf("Video: cannot encode result as QR: %v", err)
		return nil
	}
	img := image.NewGray(image.Rect(0, 0, m.GetWidth(), m.GetHeight()))
	for y := 0; y < m.GetHeight(); y++ {
		for x := 0; x < m.GetWidth(); x++ {
			if m.Get(x, y) {
				img.SetGray(x, y, color.Gray{0})
			} else {
				img.SetGray(x, y, color.Gray{0xff})
			}
		}
	}
	return img
}
