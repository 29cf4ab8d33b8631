// Package fontload locates and parses fonts for the text rasterizer.
package fontload

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/flopp/go-findfont"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/InkLayer/WatermarkStation/internal/textrender"
)

var ErrNoUsableFont error = errors.New("no usable font found")

// defaultNames covers the sans fonts commonly present on linux hosts and
// in the runtime containers.
var defaultNames = []string{
	"DejaVuSans.ttf",
	"LiberationSans-Regular.ttf",
	"FreeSans.ttf",
	"Arial.ttf",
}

// Load reads and parses a single font file.
func Load(path string) (*textrender.FaceRasterizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	r, err := textrender.NewFaceRasterizer(data)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", path, err)
	}
	return r, nil
}

// Discover walks the candidate names through the system font catalog and
// returns the first one that parses. Empty input falls back to the
// default candidates.
func Discover(names ...string) (*textrender.FaceRasterizer, error) {
	if len(names) == 0 {
		names = defaultNames
	}

	for _, name := range names {
		path, err := findfont.Find(name)
		if err != nil {
			continue
		}
		r, err := Load(path)
		if err != nil {
			continue
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoUsableFont, strings.Join(names, ", "))
}

// Builtin returns a rasterizer over the embedded Go Regular face, the
// last resort when the host has no usable font.
func Builtin() (*textrender.FaceRasterizer, error) {
	return textrender.NewFaceRasterizer(goregular.TTF)
}

// Resolve picks the first source that works: explicit path, system
// discovery, builtin face.
func Resolve(path string) (*textrender.FaceRasterizer, error) {
	if path != "" {
		return Load(path)
	}
	if r, err := Discover(); err == nil {
		return r, nil
	}
	return Builtin()
}
