// Package preprocess turns raw image bytes or camera frames into normalized
// model input tensors.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// ErrDecode indicates the input is not a recognizable image or the camera
// plane layout is inconsistent.
var ErrDecode = errors.New("decode failure")

// ToTensor decodes encoded image bytes and converts them into a normalized
// (1,224,224,3) tensor.
func ToTensor(data []byte) (*types.Tensor, error) {
	img, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	return fromImage(img), nil
}

// FrameToTensor assembles a multi-plane camera frame into a single image and
// converts it the same way as ToTensor.
func FrameToTensor(frame types.Frame) (*types.Tensor, error) {
	img, err := assembleFrame(frame)
	if err != nil {
		return nil, err
	}
	return fromImage(img), nil
}

// FromImage converts an already decoded image into a normalized tensor.
func FromImage(img image.Image) *types.Tensor {
	return fromImage(img)
}

// DecodeAndTensor decodes image bytes once and returns both the decoded
// image and its tensor, for callers that need to render on the original.
func DecodeAndTensor(data []byte) (image.Image, *types.Tensor, error) {
	img, err := decodeBytes(data)
	if err != nil {
		return nil, nil, err
	}
	return img, fromImage(img), nil
}

// decodeBytes tries the registered stdlib/x-image decoders first and falls
// back to an explicit WebP decode, matching the formats the rest of the
// pipeline encodes.
func decodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: unknown or unsupported image format", ErrDecode)
}

// assembleFrame copies plane rows into one contiguous buffer per plane and
// builds a standard image from them. Three planes are treated as YUV 4:2:0,
// a single plane as grayscale; anything else is an unrecognized layout.
func assembleFrame(frame types.Frame) (image.Image, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame dimensions %dx%d", ErrDecode, frame.Width, frame.Height)
	}

	switch len(frame.Planes) {
	case 1:
		buf, err := packPlane(frame.Planes[0], frame.Width, frame.Height)
		if err != nil {
			return nil, err
		}
		return &image.Gray{Pix: buf, Stride: frame.Width, Rect: image.Rect(0, 0, frame.Width, frame.Height)}, nil
	case 3:
		cw := (frame.Width + 1) / 2
		ch := (frame.Height + 1) / 2

		y, err := packPlane(frame.Planes[0], frame.Width, frame.Height)
		if err != nil {
			return nil, err
		}
		cb, err := packPlane(frame.Planes[1], cw, ch)
		if err != nil {
			return nil, err
		}
		cr, err := packPlane(frame.Planes[2], cw, ch)
		if err != nil {
			return nil, err
		}

		return &image.YCbCr{
			Y:              y,
			Cb:             cb,
			Cr:             cr,
			YStride:        frame.Width,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           image.Rect(0, 0, frame.Width, frame.Height),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized plane layout (%d planes)", ErrDecode, len(frame.Planes))
	}
}

// packPlane strips row padding and pixel stride so the plane becomes a tight
// width*height sample buffer.
func packPlane(plane types.Plane, width, height int) ([]byte, error) {
	rowStride := plane.RowStride
	if rowStride <= 0 {
		rowStride = width
	}
	pixelStride := plane.PixelStride
	if pixelStride <= 0 {
		pixelStride = 1
	}

	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*rowStride + x*pixelStride
			if idx >= len(plane.Bytes) {
				return nil, fmt.Errorf("%w: plane buffer too short (%d bytes for %dx%d)",
					ErrDecode, len(plane.Bytes), width, height)
			}
			out[y*width+x] = plane.Bytes[idx]
		}
	}
	return out, nil
}

// fromImage resizes to the model input size and emits RGB values divided by
// 255, batch-height-width-channel order.
func fromImage(img image.Image) *types.Tensor {
	resized := imaging.Resize(img, types.TensorWidth, types.TensorHeight, imaging.Linear)

	t := types.NewTensor()
	for y := 0; y < types.TensorHeight; y++ {
		for x := 0; x < types.TensorWidth; x++ {
			off := resized.PixOffset(x, y)
			base := (y*types.TensorWidth + x) * types.TensorChannels
			t.Data[base+0] = float32(resized.Pix[off+0]) / 255.0
			t.Data[base+1] = float32(resized.Pix[off+1]) / 255.0
			t.Data[base+2] = float32(resized.Pix[off+2]) / 255.0
		}
	}
	return t
}
