// Package imagecodec converts between container formats and pixel buffers
// at the service edges.
package imagecodec

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// Register decoders, including WebP via x/image/webp.
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	WEBP Format = "webp"
)

var FormatMap = map[Format]bool{
	PNG:  true,
	JPEG: true,
	GIF:  true,
	WEBP: true,
}

// Quality holds the lossy-encoder knobs.
type Quality struct {
	JPEG int
	WEBP int
}

var DefaultQuality = Quality{JPEG: 95, WEBP: 90}

var (
	ErrNilReader         error = errors.New("nil reader provided")
	ErrUnsupportedFormat error = errors.New("unsupported image format")
)

// ParseFormat normalizes a format or extension name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if f == "jpg" {
		f = JPEG
	}
	if !FormatMap[f] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Decode sniffs and decodes the stream into a 4-channel buffer.
func Decode(r io.Reader) (*pixbuf.Buffer, Format, error) {
	if r == nil {
		return nil, "", ErrNilReader
	}

	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	f, err := ParseFormat(name)
	if err != nil {
		return nil, "", err
	}
	return pixbuf.FromImage(img), f, nil
}

// Encode writes the buffer in the requested container. JPEG and GIF carry
// no alpha, so the buffer is flattened over white first.
func Encode(w io.Writer, b *pixbuf.Buffer, f Format, q Quality) error {
	if b == nil {
		return pixbuf.ErrBadDimensions
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if q.JPEG <= 0 {
		q.JPEG = DefaultQuality.JPEG
	}
	if q.WEBP <= 0 {
		q.WEBP = DefaultQuality.WEBP
	}

	img := b.ToNRGBA()
	switch f {
	case PNG:
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	case JPEG:
		flat := flattenWhite(b)
		if err := imaging.Encode(w, flat, imaging.JPEG, imaging.JPEGQuality(q.JPEG)); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	case GIF:
		flat := flattenWhite(b)
		if err := imaging.Encode(w, flat, imaging.GIF); err != nil {
			return fmt.Errorf("encode gif: %w", err)
		}
	case WEBP:
		if err := webp.Encode(w, img, &webp.Options{Lossless: false, Quality: float32(q.WEBP)}); err != nil {
			return fmt.Errorf("encode webp: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	return nil
}

// flattenWhite composites the buffer over a white background, discarding
// alpha for containers that cannot carry it.
func flattenWhite(b *pixbuf.Buffer) *image.NRGBA {
	img := b.ToNRGBA()
	if !b.HasAlpha() {
		return img
	}

	out := image.NewNRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		a := uint32(img.Pix[i+3])
		for c := 0; c < 3; c++ {
			v := (uint32(img.Pix[i+c])*a + 255*(255-a) + 127) / 255
			out.Pix[i+c] = uint8(v)
		}
		out.Pix[i+3] = 0xFF
	}
	return out
}
