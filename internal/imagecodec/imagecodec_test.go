package imagecodec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

func encodeBuffer(t *testing.T, b *pixbuf.Buffer, f Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, b, f, DefaultQuality))
	require.Greater(t, buf.Len(), 0)
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Format
		wantErr bool
	}{
		{name: "png", in: "png", want: PNG},
		{name: "jpg alias", in: "jpg", want: JPEG},
		{name: "extension with dot", in: ".jpg", want: JPEG},
		{name: "mixed case", in: "WebP", want: WEBP},
		{name: "gif", in: "gif", want: GIF},
		{name: "tiff unsupported", in: "tiff", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.in)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_Ext(t *testing.T) {
	require.Equal(t, ".jpg", JPEG.Ext())
	require.Equal(t, ".png", PNG.Ext())
	require.Equal(t, "image/webp", WEBP.ContentType())
}

func TestEncodeDecode_PNGLossless(t *testing.T) {
	src, err := pixbuf.Filled(8, 6, 4, 123)
	require.NoError(t, err)
	src.At(2, 3)[0] = 200

	data := encodeBuffer(t, src, PNG)

	got, f, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, PNG, f)
	require.Equal(t, src.Samples, got.Samples)
}

func TestEncodeDecode_LossyFormats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{name: "jpeg", format: JPEG},
		{name: "gif", format: GIF},
		{name: "webp", format: WEBP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := pixbuf.Filled(16, 10, 4, 128)
			require.NoError(t, err)

			data := encodeBuffer(t, src, tt.format)

			got, f, err := Decode(bytes.NewReader(data))
			require.NoError(t, err)
			require.Equal(t, tt.format, f)
			require.Equal(t, 16, got.Width)
			require.Equal(t, 10, got.Height)
		})
	}
}

func TestEncode_JPEGFlattensAlpha(t *testing.T) {
	src, err := pixbuf.New(4, 4, 4)
	require.NoError(t, err)
	for i := 0; i < len(src.Samples); i += 4 {
		src.Samples[i] = 200 // red, but fully transparent
	}

	data := encodeBuffer(t, src, JPEG)

	got, _, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	px := got.At(1, 1)
	require.InDelta(t, 255, int(px[0]), 4, "transparent pixels flatten to white")
	require.InDelta(t, 255, int(px[1]), 4)
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := Decode(nil)
	require.ErrorIs(t, err, ErrNilReader)

	_, _, err = Decode(strings.NewReader("not an image"))
	require.Error(t, err)
}

func TestEncode_UnknownFormat(t *testing.T) {
	src, err := pixbuf.Filled(2, 2, 3, 0)
	require.NoError(t, err)

	err = Encode(&bytes.Buffer{}, src, Format("tiff"), DefaultQuality)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
