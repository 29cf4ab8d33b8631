// Package layout resolves watermark placement on a canvas.
package layout

import (
	"errors"
	"fmt"
)

type Anchor string

const (
	BottomRight Anchor = "bottom_right"
	BottomLeft  Anchor = "bottom_left"
	TopRight    Anchor = "top_right"
	TopLeft     Anchor = "top_left"
	Center      Anchor = "center"
	Tile        Anchor = "tile"
)

var AnchorMap = map[Anchor]bool{
	BottomRight: true,
	BottomLeft:  true,
	TopRight:    true,
	TopLeft:     true,
	Center:      true,
	Tile:        true,
}

const (
	// DefaultPadding keeps single-point anchors off the canvas edge.
	DefaultPadding = 20
	// TileMargin is the gap between repetitions of a tiled watermark.
	TileMargin = 100
)

var (
	ErrInvalidAnchor error = errors.New("unknown anchor")
	ErrTileAnchor    error = errors.New("tile anchor resolves to many placements, use TilePositions")
)

// Placement is the top-left corner of an object on the canvas. Values may
// lie outside the canvas when the object does not fit; compositing clips.
type Placement struct {
	X int
	Y int
}

func ParseAnchor(s string) (Anchor, error) {
	a := Anchor(s)
	if !AnchorMap[a] {
		return "", fmt.Errorf("%w: %q", ErrInvalidAnchor, s)
	}
	return a, nil
}

// Resolve places an objW×objH object on a canvasW×canvasH canvas.
func Resolve(a Anchor, canvasW, canvasH, objW, objH, padding int) (Placement, error) {
	switch a {
	case BottomRight:
		return Placement{X: canvasW - objW - padding, Y: canvasH - objH - padding}, nil
	case BottomLeft:
		return Placement{X: padding, Y: canvasH - objH - padding}, nil
	case TopRight:
		return Placement{X: canvasW - objW - padding, Y: padding}, nil
	case TopLeft:
		return Placement{X: padding, Y: padding}, nil
	case Center:
		return Placement{X: (canvasW - objW) / 2, Y: (canvasH - objH) / 2}, nil
	case Tile:
		return Placement{}, ErrTileAnchor
	default:
		return Placement{}, fmt.Errorf("%w: %q", ErrInvalidAnchor, a)
	}
}

// TilePositions lists the row-major grid of placements covering the canvas,
// stepping by object size plus margin from the top-left corner.
func TilePositions(canvasW, canvasH, objW, objH, margin int) []Placement {
	if canvasW <= 0 || canvasH <= 0 || objW <= 0 || objH <= 0 {
		return nil
	}

	var out []Placement
	for y := 0; y < canvasH; y += objH + margin {
		for x := 0; x < canvasW; x += objW + margin {
			out = append(out, Placement{X: x, Y: y})
		}
	}
	return out
}
