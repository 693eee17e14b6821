package grabber

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"qrscan/scanner"
)

// Decoder finds QR codes in raw RGBA frames.
type Decoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewDecoder creates a QR-only decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
			gozxing.DecodeHintType_TRY_HARDER:       true,
		},
	}
}

// Decode implements scanner.FrameDecoder. A frame without a code yields
// scanner.ErrNoCode.
func (d *Decoder) Decode(pix []byte, w, h int) (string, error) {
	if w <= 0 || h <= 0 || len(pix) < w*h*4 {
		return "", fmt.Errorf("short frame: %d bytes for %dx%d", len(pix), w, h)
	}
	img := &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}

	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		var nf gozxing.NotFoundException
		if errors.As(err, &nf) {
			return "", scanner.ErrNoCode
		}
		return "", err
	}
	return result.GetText(), nil
}
