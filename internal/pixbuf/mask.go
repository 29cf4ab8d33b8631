package pixbuf

import (
	"image"

	"github.com/disintegration/imaging"
)

// Mask is a per-pixel coverage surface: 255 applies the foreground fully,
// 0 leaves the background untouched.
type Mask struct {
	Width    int
	Height   int
	Coverage []uint8
}

// OpaqueMask covers every pixel fully.
func OpaqueMask(w, h int) *Mask {
	cov := make([]uint8, w*h)
	for i := range cov {
		cov[i] = 0xFF
	}
	return &Mask{Width: w, Height: h, Coverage: cov}
}

// MaskFromAlpha derives coverage from the alpha channel of a 4-channel
// buffer. 3-channel buffers have no alpha and yield full coverage.
func MaskFromAlpha(b *Buffer) *Mask {
	if !b.HasAlpha() {
		return OpaqueMask(b.Width, b.Height)
	}
	cov := make([]uint8, b.Width*b.Height)
	for i := range cov {
		cov[i] = b.Samples[i*ChannelsRGBA+3]
	}
	return &Mask{Width: b.Width, Height: b.Height, Coverage: cov}
}

// MaskFromImage reads an explicit mask image, where 255 marks transparent
// and 0 marks opaque regions. Coverage is the inverse of the stored value.
func MaskFromImage(img image.Image) *Mask {
	n := imaging.Clone(img)
	w := n.Bounds().Dx()
	h := n.Bounds().Dy()
	cov := make([]uint8, w*h)
	for i := range cov {
		cov[i] = 0xFF - n.Pix[i*ChannelsRGBA] // red channel carries the gray value
	}
	return &Mask{Width: w, Height: h, Coverage: cov}
}

func (m *Mask) Clone() *Mask {
	cp := *m
	cp.Coverage = make([]uint8, len(m.Coverage))
	copy(cp.Coverage, m.Coverage)
	return &cp
}

// Matches reports whether the mask covers exactly the extent of b.
func (m *Mask) Matches(b *Buffer) bool {
	return m.Width == b.Width && m.Height == b.Height
}
