package textrender

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func testRasterizer(t *testing.T) *FaceRasterizer {
	t.Helper()

	r, err := NewFaceRasterizer(goregular.TTF)
	require.NoError(t, err)
	return r
}

func TestNewFaceRasterizer_BadBytes(t *testing.T) {
	_, err := NewFaceRasterizer([]byte("not a font"))
	require.Error(t, err)
}

func TestRasterize(t *testing.T) {
	r := testRasterizer(t)

	got, err := r.Rasterize("Watermark", 24)
	require.NoError(t, err)
	require.Greater(t, got.Width, 0)
	require.Greater(t, got.Height, 0)
	require.Len(t, got.Coverage, got.Width*got.Height)

	inked := 0
	for _, v := range got.Coverage {
		if v > 0 {
			inked++
		}
	}
	require.Greater(t, inked, 0, "glyphs must leave coverage")
}

func TestRasterize_SizeScalesBox(t *testing.T) {
	r := testRasterizer(t)

	small, err := r.Rasterize("ABC", 12)
	require.NoError(t, err)
	big, err := r.Rasterize("ABC", 48)
	require.NoError(t, err)

	require.Greater(t, big.Width, small.Width)
	require.Greater(t, big.Height, small.Height)
}

func TestRasterize_EmptyText(t *testing.T) {
	r := testRasterizer(t)

	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "spaces only", in: "   "},
		{name: "tab and newline", in: "\t\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Rasterize(tt.in, 24)
			require.ErrorIs(t, err, ErrEmptyText)
		})
	}
}

func TestRasterize_ZeroSizeUsesDefault(t *testing.T) {
	r := testRasterizer(t)

	got, err := r.Rasterize("x", 0)
	require.NoError(t, err)
	require.Greater(t, got.Width, 0)
}

func TestRendered_Tint(t *testing.T) {
	rd := &Rendered{Width: 2, Height: 1, Coverage: []uint8{0, 200}}

	fg, mask := rd.Tint(color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	require.Equal(t, 3, fg.Channels)
	require.Equal(t, []uint8{10, 20, 30}, fg.At(1, 0))
	require.Equal(t, []uint8{0, 200}, mask.Coverage)
	require.True(t, mask.Matches(fg))

	// tinting must copy, not alias, the coverage
	mask.Coverage[0] = 9
	require.Equal(t, uint8(0), rd.Coverage[0])
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{
			name: "with hash",
			in:   "#FF8000",
			want: color.NRGBA{R: 0xFF, G: 0x80, B: 0x00, A: 0xFF},
		},
		{
			name: "without hash",
			in:   "00ff00",
			want: color.NRGBA{R: 0, G: 0xFF, B: 0, A: 0xFF},
		},
		{
			name: "surrounding spaces",
			in:   "  #102030  ",
			want: color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xFF},
		},
		{
			name:    "short form rejected",
			in:      "#FFF",
			wantErr: true,
		},
		{
			name:    "garbage",
			in:      "#GGHHII",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedColor)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
