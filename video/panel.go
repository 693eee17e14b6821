package video

import (
	"encoding/binary"
	"image"
	"image/color"
	"log"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// DefaultFont is used when Config.Font is empty.
const DefaultFont = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// Config holds video display configuration.
type Config struct {
	Device string `yaml:"device"` // default /dev/fb0
	Font   string `yaml:"font"`
}

// Panel is one full-screen status page.
type Panel struct {
	Background color.RGBA
	Title      string
	Lines      []string
	Image      image.Image // optional, drawn below the text
}

// Render draws p onto a width x height canvas.
func Render(p Panel, width, height int, font string) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(rgba)

	dc.SetColor(p.Background)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	fg := foreground(p.Background)
	y := float64(height) / 5

	setFontSize(dc, font, float64(height)/8)
	dc.SetColor(fg)
	dc.DrawStringAnchored(p.Title, float64(width)/2, y, 0.5, 0.5)

	setFontSize(dc, font, float64(height)/16)
	for _, line := range p.Lines {
		y += float64(height) / 10
		dc.DrawStringAnchored(line, float64(width)/2, y, 0.5, 0.5)
	}

	if p.Image != nil {
		top := int(y) + height/16
		side := height - top - height/20
		if side > width/2 {
			side = width / 2
		}
		if side > 0 {
			dst := image.Rect(width/2-side/2, top, width/2+side/2, top+side)
			draw.NearestNeighbor.Scale(rgba, dst, p.Image, p.Image.Bounds(), draw.Src, nil)
		}
	}
	return rgba
}

func setFontSize(dc *gg.Context, font string, size float64) {
	if font == "" {
		return
	}
	if err := dc.LoadFontFace(font, size); err != nil {
		log.Printf("Video: failed to load font: %v", err)
	}
}

// foreground picks black or white text for bg.
func foreground(bg color.RGBA) color.Color {
	lum := 299*int(bg.R) + 587*int(bg.G) + 114*int(bg.B)
	if lum > 128*1000 {
		return color.Black
	}
	return color.White
}

// EncodeRGB565 packs img into a 16 bpp framebuffer layout with the given
// line length in bytes.
func EncodeRGB565(img *image.RGBA, lineLength int, dst []byte) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
			pixel16 := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(bl>>3)
			fbIdx := y*lineLength + x*2
			if fbIdx+1 < len(dst) {
				binary.LittleEndian.PutUint16(dst[fbIdx:], pixel16)
			}
		}
	}
}
