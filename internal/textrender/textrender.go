// Package textrender rasterizes watermark text into coverage bitmaps.
// Font discovery and file handling live in fontload; this package only
// turns parsed font bytes plus a string into pixels.
package textrender

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

const (
	DefaultSizePt = 24.0
	fontDPI       = 72
)

var DefaultColor = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

var (
	ErrEmptyText      error = errors.New("no visible text to rasterize")
	ErrMalformedColor error = errors.New("malformed hex color")
)

// Rendered is a tight coverage bitmap of rasterized text, one byte per
// pixel, 255 fully inked.
type Rendered struct {
	Width    int
	Height   int
	Coverage []uint8
}

// Rasterizer is the single capability the pipeline needs for text overlays.
type Rasterizer interface {
	Rasterize(text string, sizePt float64) (*Rendered, error)
}

// FaceRasterizer renders through an opentype font. Faces are cached per
// size and glyph access is serialized, faces are not safe for concurrent
// use.
type FaceRasterizer struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewFaceRasterizer parses TTF/OTF bytes, accepting collections by taking
// their first font.
func NewFaceRasterizer(fontBytes []byte) (*FaceRasterizer, error) {
	coll, err := opentype.ParseCollection(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	f, err := coll.Font(0)
	if err != nil {
		return nil, fmt.Errorf("font from collection: %w", err)
	}
	return &FaceRasterizer{font: f, faces: make(map[float64]font.Face)}, nil
}

func (r *FaceRasterizer) face(sizePt float64) (font.Face, error) {
	if f, ok := r.faces[sizePt]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size: sizePt,
		DPI:  fontDPI,
	})
	if err != nil {
		return nil, fmt.Errorf("build face at %.1fpt: %w", sizePt, err)
	}
	r.faces[sizePt] = f
	return f, nil
}

func (r *FaceRasterizer) Rasterize(text string, sizePt float64) (*Rendered, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if sizePt <= 0 {
		sizePt = DefaultSizePt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	face, err := r.face(sizePt)
	if err != nil {
		return nil, err
	}

	bounds, _ := font.BoundString(face, text)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyText
	}

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		// shift the baseline so the inked box starts at the origin
		Dot: fixed.Point26_6{X: -bounds.Min.X, Y: -bounds.Min.Y},
	}
	d.DrawString(text)

	return &Rendered{Width: w, Height: h, Coverage: dst.Pix}, nil
}

// Tint turns the render into a compositing pair: a uniform-color
// foreground and the coverage as its mask.
func (r *Rendered) Tint(c color.NRGBA) (*pixbuf.Buffer, *pixbuf.Mask) {
	fg := &pixbuf.Buffer{
		Width:    r.Width,
		Height:   r.Height,
		Channels: pixbuf.ChannelsRGB,
		Samples:  make([]uint8, r.Width*r.Height*pixbuf.ChannelsRGB),
	}
	for i := 0; i < r.Width*r.Height; i++ {
		fg.Samples[i*3+0] = c.R
		fg.Samples[i*3+1] = c.G
		fg.Samples[i*3+2] = c.B
	}

	cov := make([]uint8, len(r.Coverage))
	copy(cov, r.Coverage)
	return fg, &pixbuf.Mask{Width: r.Width, Height: r.Height, Coverage: cov}
}

// ParseHexColor reads #RRGGBB (hash optional). Callers treat failures as
// recoverable and fall back to DefaultColor.
func ParseHexColor(s string) (color.NRGBA, error) {
	hexStr := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hexStr) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrMalformedColor, s)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hexStr, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrMalformedColor, s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
}
