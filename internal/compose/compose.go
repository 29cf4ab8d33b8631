// Package compose blends watermark surfaces onto a canvas with straight
// (non-premultiplied) alpha.
package compose

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/InkLayer/WatermarkStation/internal/layout"
	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

var (
	ErrBackgroundNotRGBA error = errors.New("background buffer must be RGBA")
	ErrBadTargetWidth    error = errors.New("target width must be positive")
	ErrNilSurface        error = errors.New("nil pixel surface provided")
)

// Over blends fg onto bg in place at the given placement. Per-pixel weight
// is coverage/255 scaled by opacity; the background alpha byte is never
// written, and zero-coverage pixels keep their exact background bytes.
// A nil mask falls back to the foreground's own alpha.
func Over(bg, fg *pixbuf.Buffer, mask *pixbuf.Mask, at layout.Placement, opacity float64) error {
	if bg == nil || fg == nil {
		return ErrNilSurface
	}
	if !bg.HasAlpha() {
		return ErrBackgroundNotRGBA
	}
	if mask == nil {
		mask = pixbuf.MaskFromAlpha(fg)
	}
	if !mask.Matches(fg) {
		return fmt.Errorf("%w: mask %dx%d, foreground %dx%d",
			pixbuf.ErrDimensionMismatch, mask.Width, mask.Height, fg.Width, fg.Height)
	}

	opacity = math.Max(0, math.Min(1, opacity))
	if opacity == 0 {
		return nil
	}

	for fy := 0; fy < fg.Height; fy++ {
		dy := at.Y + fy
		if dy < 0 || dy >= bg.Height {
			continue
		}
		for fx := 0; fx < fg.Width; fx++ {
			dx := at.X + fx
			if dx < 0 || dx >= bg.Width {
				continue
			}

			cov := mask.Coverage[fy*mask.Width+fx]
			if cov == 0 {
				continue
			}
			a := float64(cov) / 255 * opacity

			src := fg.At(fx, fy)
			dst := bg.At(dx, dy)
			for c := 0; c < 3; c++ {
				blended := float64(dst[c])*(1-a) + float64(src[c])*a
				dst[c] = uint8(math.Round(math.Max(0, math.Min(255, blended))))
			}
		}
	}
	return nil
}

// Tile repeats fg over the whole canvas on the layout grid.
func Tile(bg, fg *pixbuf.Buffer, mask *pixbuf.Mask, opacity float64) error {
	if bg == nil || fg == nil {
		return ErrNilSurface
	}
	for _, at := range layout.TilePositions(bg.Width, bg.Height, fg.Width, fg.Height, layout.TileMargin) {
		if err := Over(bg, fg, mask, at, opacity); err != nil {
			return err
		}
	}
	return nil
}

// ScaleToWidth resamples the foreground and its mask to targetW pixels wide,
// preserving aspect ratio. The result is always RGBA.
func ScaleToWidth(fg *pixbuf.Buffer, mask *pixbuf.Mask, targetW int) (*pixbuf.Buffer, *pixbuf.Mask, error) {
	if fg == nil {
		return nil, nil, ErrNilSurface
	}
	if targetW <= 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrBadTargetWidth, targetW)
	}
	if err := fg.Validate(); err != nil {
		return nil, nil, err
	}
	if mask != nil && !mask.Matches(fg) {
		return nil, nil, fmt.Errorf("%w: mask %dx%d, foreground %dx%d",
			pixbuf.ErrDimensionMismatch, mask.Width, mask.Height, fg.Width, fg.Height)
	}

	// 0 height keeps the ratio, Lanczos as everywhere else in the pipeline.
	resized := imaging.Resize(fg.ToNRGBA(), targetW, 0, imaging.Lanczos)
	out := pixbuf.FromImage(resized)

	if mask == nil {
		return out, nil, nil
	}

	gray := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	copy(gray.Pix, mask.Coverage)
	rm := imaging.Resize(gray, out.Width, out.Height, imaging.Lanczos)

	cov := make([]uint8, out.Width*out.Height)
	for i := range cov {
		cov[i] = rm.Pix[i*4]
	}
	return out, &pixbuf.Mask{Width: out.Width, Height: out.Height, Coverage: cov}, nil
}
