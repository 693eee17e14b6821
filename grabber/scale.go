package grabber

import (
	"image"

	"golang.org/x/image/draw"
)

// fit returns img as an origin-based RGBA image no larger than maxW x maxH.
// Zero bounds leave that dimension unconstrained. Images are never scaled up.
func fit(img image.Image, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	origWidth, origHeight := b.Dx(), b.Dy()

	scaleFactor := 1.0
	if maxW > 0 && origWidth > maxW {
		scaleFactor = float64(maxW) / float64(origWidth)
	}
	if maxH > 0 && origHeight > maxH {
		heightScale := float64(maxH) / float64(origHeight)
		if heightScale < scaleFactor {
			scaleFactor = heightScale
		}
	}

	if scaleFactor >= 1.0 {
		rgba := image.NewRGBA(image.Rect(0, 0, origWidth, origHeight))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		return rgba
	}

	newWidth := int(float64(origWidth) * scaleFactor)
	newHeight := int(float64(origHeight) * scaleFactor)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
	return scaled
}
