package compose

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/InkLayer/WatermarkStation/internal/layout"
	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

func testBuffer(t *testing.T, w, h, channels int, v uint8) *pixbuf.Buffer {
	t.Helper()

	b, err := pixbuf.Filled(w, h, channels, v)
	require.NoError(t, err)
	return b
}

func TestOver_FullCoverage(t *testing.T) {
	bg := testBuffer(t, 2, 2, 4, 100)
	fg := testBuffer(t, 2, 2, 3, 200)

	err := Over(bg, fg, pixbuf.OpaqueMask(2, 2), layout.Placement{}, 1.0)
	require.NoError(t, err)

	px := bg.At(0, 0)
	require.Equal(t, uint8(200), px[0])
	require.Equal(t, uint8(200), px[1])
	require.Equal(t, uint8(200), px[2])
	require.Equal(t, uint8(100), px[3], "background alpha must survive")
}

func TestOver_HalfOpacity(t *testing.T) {
	bg := testBuffer(t, 1, 1, 4, 100)
	fg := testBuffer(t, 1, 1, 3, 200)

	err := Over(bg, fg, pixbuf.OpaqueMask(1, 1), layout.Placement{}, 0.5)
	require.NoError(t, err)

	// 100*(1-0.5) + 200*0.5 = 150
	require.Equal(t, uint8(150), bg.At(0, 0)[0])
}

func TestOver_ZeroCoverageLeavesBytes(t *testing.T) {
	bg := testBuffer(t, 2, 2, 4, 123)
	before := bg.Clone()
	fg := testBuffer(t, 2, 2, 3, 200)

	zero := &pixbuf.Mask{Width: 2, Height: 2, Coverage: make([]uint8, 4)}
	err := Over(bg, fg, zero, layout.Placement{}, 1.0)
	require.NoError(t, err)
	require.Equal(t, before.Samples, bg.Samples)
}

func TestOver_ZeroOpacityLeavesBytes(t *testing.T) {
	bg := testBuffer(t, 2, 2, 4, 9)
	before := bg.Clone()
	fg := testBuffer(t, 2, 2, 3, 250)

	err := Over(bg, fg, pixbuf.OpaqueMask(2, 2), layout.Placement{}, 0)
	require.NoError(t, err)
	require.Equal(t, before.Samples, bg.Samples)
}

func TestOver_NilMaskUsesForegroundAlpha(t *testing.T) {
	bg := testBuffer(t, 1, 1, 4, 100)
	fg := testBuffer(t, 1, 1, 4, 200)
	fg.At(0, 0)[3] = 0 // transparent foreground pixel

	err := Over(bg, fg, nil, layout.Placement{}, 1.0)
	require.NoError(t, err)
	require.Equal(t, uint8(100), bg.At(0, 0)[0])
}

func TestOver_ClipsOutOfBounds(t *testing.T) {
	tests := []struct {
		name string
		at   layout.Placement
	}{
		{name: "negative offset", at: layout.Placement{X: -1, Y: -1}},
		{name: "past the edge", at: layout.Placement{X: 1, Y: 1}},
		{name: "fully outside", at: layout.Placement{X: 10, Y: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bg := testBuffer(t, 2, 2, 4, 50)
			fg := testBuffer(t, 2, 2, 3, 250)

			err := Over(bg, fg, pixbuf.OpaqueMask(2, 2), tt.at, 1.0)
			require.NoError(t, err)
			// the overlapped part changed, nothing panicked
		})
	}
}

func TestOver_Errors(t *testing.T) {
	tests := []struct {
		name    string
		bg      *pixbuf.Buffer
		fg      *pixbuf.Buffer
		mask    *pixbuf.Mask
		wantErr error
	}{
		{
			name:    "nil background",
			fg:      testBuffer(t, 1, 1, 3, 0),
			wantErr: ErrNilSurface,
		},
		{
			name:    "nil foreground",
			bg:      testBuffer(t, 1, 1, 4, 0),
			wantErr: ErrNilSurface,
		},
		{
			name:    "rgb background",
			bg:      testBuffer(t, 1, 1, 3, 0),
			fg:      testBuffer(t, 1, 1, 3, 0),
			wantErr: ErrBackgroundNotRGBA,
		},
		{
			name:    "mask size mismatch",
			bg:      testBuffer(t, 4, 4, 4, 0),
			fg:      testBuffer(t, 2, 2, 3, 0),
			mask:    pixbuf.OpaqueMask(3, 3),
			wantErr: pixbuf.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Over(tt.bg, tt.fg, tt.mask, layout.Placement{}, 1.0)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTile_CoversGrid(t *testing.T) {
	bg := testBuffer(t, 130, 130, 4, 0)
	fg := testBuffer(t, 10, 10, 3, 255)

	err := Tile(bg, fg, pixbuf.OpaqueMask(10, 10), 1.0)
	require.NoError(t, err)

	// cells at (0,0) and (110,110), gap in between stays black
	require.Equal(t, uint8(255), bg.At(0, 0)[0])
	require.Equal(t, uint8(255), bg.At(115, 115)[0])
	require.Equal(t, uint8(0), bg.At(50, 50)[0])
}

func TestScaleToWidth(t *testing.T) {
	fg := testBuffer(t, 100, 50, 4, 77)
	mask := pixbuf.OpaqueMask(100, 50)

	scaled, scaledMask, err := ScaleToWidth(fg, mask, 50)
	require.NoError(t, err)
	require.Equal(t, 50, scaled.Width)
	require.Equal(t, 25, scaled.Height, "aspect ratio preserved")
	require.True(t, scaledMask.Matches(scaled))
	require.Equal(t, uint8(0xFF), scaledMask.Coverage[0])
}

func TestScaleToWidth_NilMask(t *testing.T) {
	fg := testBuffer(t, 40, 40, 3, 10)

	scaled, scaledMask, err := ScaleToWidth(fg, nil, 20)
	require.NoError(t, err)
	require.Nil(t, scaledMask)
	require.Equal(t, 20, scaled.Width)
	require.True(t, scaled.HasAlpha(), "resampling normalizes to RGBA")
}

func TestScaleToWidth_Errors(t *testing.T) {
	fg := testBuffer(t, 10, 10, 3, 0)

	_, _, err := ScaleToWidth(fg, nil, 0)
	require.ErrorIs(t, err, ErrBadTargetWidth)

	_, _, err = ScaleToWidth(nil, nil, 10)
	require.ErrorIs(t, err, ErrNilSurface)

	_, _, err = ScaleToWidth(fg, pixbuf.OpaqueMask(3, 3), 10)
	require.ErrorIs(t, err, pixbuf.ErrDimensionMismatch)
}
