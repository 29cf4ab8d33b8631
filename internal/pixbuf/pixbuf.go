// Package pixbuf provides the in-memory pixel representation shared by all compositing and encoding stages.
package pixbuf

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	ChannelsRGB  = 3
	ChannelsRGBA = 4
)

var (
	ErrBadDimensions     error = errors.New("buffer dimensions must be positive")
	ErrBadChannels       error = errors.New("buffer must have 3 or 4 channels")
	ErrDimensionMismatch error = errors.New("dimension mismatch between pixel surfaces")
)

// Buffer is a flat interleaved pixel surface: row-major, origin top-left,
// RGB or RGBA sample order, no row padding.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Samples  []uint8
}

func New(w, h, channels int) (*Buffer, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrBadDimensions
	}
	if channels != ChannelsRGB && channels != ChannelsRGBA {
		return nil, ErrBadChannels
	}
	return &Buffer{
		Width:    w,
		Height:   h,
		Channels: channels,
		Samples:  make([]uint8, w*h*channels),
	}, nil
}

// Filled builds a buffer with every sample set to v.
func Filled(w, h, channels int, v uint8) (*Buffer, error) {
	b, err := New(w, h, channels)
	if err != nil {
		return nil, err
	}
	for i := range b.Samples {
		b.Samples[i] = v
	}
	return b, nil
}

// FromImage converts any decoded image into a 4-channel buffer.
// Alpha is kept straight (non-premultiplied).
func FromImage(img image.Image) *Buffer {
	n := imaging.Clone(img)
	return &Buffer{
		Width:    n.Bounds().Dx(),
		Height:   n.Bounds().Dy(),
		Channels: ChannelsRGBA,
		Samples:  n.Pix,
	}
}

// FromImageRGB converts a decoded image into a 3-channel buffer, dropping alpha.
func FromImageRGB(img image.Image) *Buffer {
	n := imaging.Clone(img)
	w := n.Bounds().Dx()
	h := n.Bounds().Dy()
	samples := make([]uint8, w*h*ChannelsRGB)
	for i, j := 0, 0; i < len(n.Pix); i, j = i+4, j+3 {
		copy(samples[j:j+3], n.Pix[i:i+3])
	}
	return &Buffer{Width: w, Height: h, Channels: ChannelsRGB, Samples: samples}
}

// Validate reports whether the sample slice matches the declared geometry.
func (b *Buffer) Validate() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return ErrBadDimensions
	}
	if b.Channels != ChannelsRGB && b.Channels != ChannelsRGBA {
		return ErrBadChannels
	}
	if want := b.Width * b.Height * b.Channels; len(b.Samples) != want {
		return fmt.Errorf("%w: have %d samples, want %d", ErrBadDimensions, len(b.Samples), want)
	}
	return nil
}

func (b *Buffer) HasAlpha() bool {
	return b.Channels == ChannelsRGBA
}

// At returns the sample slice of pixel (x, y) aliasing the backing array,
// so writes through it mutate the buffer.
func (b *Buffer) At(x, y int) []uint8 {
	off := (y*b.Width + x) * b.Channels
	return b.Samples[off : off+b.Channels]
}

func (b *Buffer) Clone() *Buffer {
	cp := *b
	cp.Samples = make([]uint8, len(b.Samples))
	copy(cp.Samples, b.Samples)
	return &cp
}

// ToRGBA returns a 4-channel copy, expanding RGB buffers with opaque alpha.
func (b *Buffer) ToRGBA() *Buffer {
	if b.Channels == ChannelsRGBA {
		return b.Clone()
	}
	out := &Buffer{
		Width:    b.Width,
		Height:   b.Height,
		Channels: ChannelsRGBA,
		Samples:  make([]uint8, b.Width*b.Height*ChannelsRGBA),
	}
	for i, j := 0, 0; i < len(out.Samples); i, j = i+4, j+3 {
		copy(out.Samples[i:i+3], b.Samples[j:j+3])
		out.Samples[i+3] = 0xFF
	}
	return out
}

// ToNRGBA renders the buffer as a standard image. 3-channel buffers
// come out fully opaque.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	if b.Channels == ChannelsRGBA {
		copy(out.Pix, b.Samples)
		return out
	}
	for i, j := 0, 0; i < len(out.Pix); i, j = i+4, j+3 {
		copy(out.Pix[i:i+3], b.Samples[j:j+3])
		out.Pix[i+3] = 0xFF
	}
	return out
}

func (b *Buffer) ToImage() image.Image {
	return b.ToNRGBA()
}
