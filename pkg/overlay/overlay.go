// Package overlay renders segmentation output back onto the source image so
// display collaborators can show which tissue the model flagged.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/leafwise/leaf-analyzer/pkg/severity"
	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// tint applied to diseased pixels
var diseasedTint = [3]uint8{220, 40, 40}

// blend weight of the tint over the original pixel
const tintAlpha = 0.45

// Render paints every mask element above the diseased threshold over its
// corresponding image region. The mask is the raw 224x224 segmentation
// vector; it is stretched to the image dimensions by nearest sampling.
func Render(img image.Image, mask []float32) (*image.NRGBA, error) {
	if len(mask) != types.MaskSize {
		return nil, fmt.Errorf("mask has %d elements, want %d", len(mask), types.MaskSize)
	}

	out := imaging.Clone(img)
	w := out.Bounds().Dx()
	h := out.Bounds().Dy()

	for y := 0; y < h; y++ {
		my := y * types.TensorHeight / h
		for x := 0; x < w; x++ {
			mx := x * types.TensorWidth / w
			if mask[my*types.TensorWidth+mx] <= severity.DiseasedThreshold {
				continue
			}
			i := out.PixOffset(x, y)
			out.Pix[i+0] = blend(out.Pix[i+0], diseasedTint[0])
			out.Pix[i+1] = blend(out.Pix[i+1], diseasedTint[1])
			out.Pix[i+2] = blend(out.Pix[i+2], diseasedTint[2])
		}
	}
	return out, nil
}

func blend(base, tint uint8) uint8 {
	return uint8(float64(base)*(1-tintAlpha) + float64(tint)*tintAlpha)
}

// Encode serializes an overlay in the requested format: jpg, png or webp.
func Encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, err
		}
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported overlay format: %s", format)
	}
	return buf.Bytes(), nil
}
