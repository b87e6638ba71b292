package faceplusplus

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Face++ image limits.
const (
	MaxImageBytes     = 2 << 20
	MaxImageDimension = 2048
	MinImageDimension = 48
)

// ErrUndecodable is returned when the upload is not a jpeg or png image.
var ErrUndecodable = errors.New("faceplusplus: cannot decode image")

// Normalize re-encodes data as a JPEG that satisfies the Face++ limits:
// the longest side is at most MaxImageDimension, the shortest at least
// MinImageDimension and the file at most MaxImageBytes.
func Normalize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	img := fit(src)

	for quality := 90; quality > 20; quality -= 5 {
		out, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if len(out) <= MaxImageBytes {
			return out, nil
		}
	}

	// 降低质量仍然过大时，逐步缩小尺寸
	b := img.Bounds()
	for scale := 0.8; scale > 0.3; scale -= 0.1 {
		w, h := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
		if min(w, h) < MinImageDimension {
			break
		}
		out, err := encodeJPEG(resize(img, w, h), 85)
		if err != nil {
			return nil, err
		}
		if len(out) <= MaxImageBytes {
			return out, nil
		}
	}
	return encodeJPEG(img, 70)
}

// fit scales src so both dimension limits hold, keeping the aspect ratio.
// When the upscale of a very narrow image pushes the longest side past
// MaxImageDimension, the longest side is centre-cropped to the limit.
func fit(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if longest := max(w, h); longest > MaxImageDimension {
		s := float64(MaxImageDimension) / float64(longest)
		w, h = max(1, int(float64(w)*s)), max(1, int(float64(h)*s))
	}
	if shortest := min(w, h); shortest < MinImageDimension {
		s := float64(MinImageDimension) / float64(shortest)
		w, h = int(float64(w)*s+0.5), int(float64(h)*s+0.5)
	}

	img := src
	if w != b.Dx() || h != b.Dy() {
		img = resize(src, w, h)
	}
	if w <= MaxImageDimension && h <= MaxImageDimension {
		return img
	}
	return cropCenter(img, min(w, MaxImageDimension), min(h, MaxImageDimension))
}

func cropCenter(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	off := image.Pt(b.Min.X+(b.Dx()-w)/2, b.Min.Y+(b.Dy()-h)/2)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, off, draw.Src)
	return dst
}

func resize(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("faceplusplus: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
