package extract

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Images narrower than this are enlarged before OCR; tesseract loses accuracy
// on small glyphs.
const minOCRWidth = 1000

// DecodeImage decodes png, jpeg, bmp, tiff or webp.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Upscale enlarges img by factor when it is narrower than minOCRWidth.
func Upscale(img image.Image, factor int) image.Image {
	bounds := img.Bounds()
	if factor <= 1 || bounds.Dx() >= minOCRWidth || bounds.Dx() == 0 {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*factor, bounds.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
