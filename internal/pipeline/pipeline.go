// Package pipeline runs the watermarking stages over batches of images.
// Stage order is fixed: logo blend, text overlay, invisible encode. Hashes
// of the pixel content are taken before the first and after the last stage
// for provenance records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/compose"
	"github.com/InkLayer/WatermarkStation/internal/fingerprint"
	"github.com/InkLayer/WatermarkStation/internal/layout"
	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/metadata"
	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
	"github.com/InkLayer/WatermarkStation/internal/textrender"
)

const (
	DefaultLogoScale = 0.15
	DefaultOpacity   = 1.0
)

var (
	ErrNoRasterizer error = errors.New("text stage requested without a rasterizer")
	ErrNoLogoImage  error = errors.New("logo stage requested without an image")
	ErrNilElement   error = errors.New("nil batch element")
)

// LogoOptions drives the visible-logo stage. A nil Mask falls back to the
// logo's own alpha after scaling.
type LogoOptions struct {
	Image   *pixbuf.Buffer
	Mask    *pixbuf.Mask
	Anchor  layout.Anchor
	Scale   float64 // fraction of canvas width, default 0.15
	Opacity float64 // default 1.0
}

type TextOptions struct {
	Text    string
	Anchor  layout.Anchor
	Color   color.NRGBA // zero value falls back to white
	SizePt  float64     // default 24
	Opacity float64     // default 1.0
}

type HiddenOptions struct {
	Message      string
	IncludeAlpha bool
}

// Options configures one run. Nil stage options mean the stage is skipped.
type Options struct {
	Logo   *LogoOptions
	Text   *TextOptions
	Hidden *HiddenOptions

	// Rasterizer is required when Text is set.
	Rasterizer textrender.Rasterizer

	// ContinueOnStageError lets later stages run after a stage failed.
	// The default stops the element at the first failure.
	ContinueOnStageError bool

	// Workers caps batch parallelism, default NumCPU.
	Workers int
}

func (o Options) validate() error {
	if o.Text != nil && o.Text.Text != "" && o.Rasterizer == nil {
		return ErrNoRasterizer
	}
	if o.Logo != nil && o.Logo.Image == nil {
		return ErrNoLogoImage
	}
	return nil
}

// Stats carries per-stage wall times for debug logging by the host.
type Stats struct {
	Logo   time.Duration
	Text   time.Duration
	Hidden time.Duration
	Total  time.Duration
}

// Result is the outcome for one batch element. Err is set on per-element
// failures and never aborts sibling elements.
type Result struct {
	Buffer   *pixbuf.Buffer
	PreHash  string
	PostHash string
	// Types lists the applied watermarks in stage order, using the
	// metadata label vocabulary.
	Types []string
	Stats Stats
	Err   error
}

// Run processes the batch, preserving input order in the returned slice.
// Elements run in parallel. Run itself fails only on invalid options or a
// canceled context.
func Run(ctx context.Context, batch []*pixbuf.Buffer, opts Options) ([]Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(batch))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, src := range batch {
		wg.Add(1)
		go func(i int, src *pixbuf.Buffer) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[i] = Result{Err: ctx.Err()}
				return
			}
			results[i] = processOne(src, opts)
		}(i, src)
	}
	wg.Wait()

	return results, ctx.Err()
}

func processOne(src *pixbuf.Buffer, opts Options) Result {
	start := time.Now()

	var res Result
	if src == nil {
		res.Err = ErrNilElement
		return res
	}
	if err := src.Validate(); err != nil {
		res.Err = err
		return res
	}

	pre, err := fingerprint.Compute(src)
	if err != nil {
		res.Err = fmt.Errorf("pre fingerprint: %w", err)
		return res
	}
	res.PreHash = pre

	// empty text is an identity stage
	wantText := opts.Text != nil && opts.Text.Text != ""

	// compositing needs an alpha channel, hidden-only runs keep the
	// carrier layout untouched
	var buf *pixbuf.Buffer
	if opts.Logo != nil || wantText {
		buf = src.ToRGBA()
	} else {
		buf = src.Clone()
	}

	var errs []error
	halted := false
	runStage := func(name, label string, tick *time.Duration, apply func() error) {
		if halted {
			return
		}
		t0 := time.Now()
		err := apply()
		*tick = time.Since(t0)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s stage: %w", name, err))
			halted = !opts.ContinueOnStageError
			return
		}
		res.Types = append(res.Types, label)
	}

	if opts.Logo != nil {
		runStage("logo", metadata.TypeLogo, &res.Stats.Logo, func() error {
			return applyLogo(buf, opts.Logo)
		})
	}
	if wantText {
		runStage("text", metadata.TypeText, &res.Stats.Text, func() error {
			return applyText(buf, opts.Text, opts.Rasterizer)
		})
	}
	if opts.Hidden != nil {
		runStage("hidden", metadata.TypeInvisible, &res.Stats.Hidden, func() error {
			return applyHidden(buf, opts.Hidden)
		})
	}

	res.Buffer = buf
	post, err := fingerprint.Compute(buf)
	if err != nil {
		errs = append(errs, fmt.Errorf("post fingerprint: %w", err))
	}
	res.PostHash = post
	res.Err = errors.Join(errs...)
	res.Stats.Total = time.Since(start)
	return res
}

func applyLogo(buf *pixbuf.Buffer, o *LogoOptions) error {
	scale := o.Scale
	if scale <= 0 {
		scale = DefaultLogoScale
	}
	opacity := o.Opacity
	if opacity == 0 {
		opacity = DefaultOpacity
	}
	anchor := o.Anchor
	if anchor == "" {
		anchor = layout.BottomRight
	}

	targetW := int(math.Round(float64(buf.Width) * scale))
	if targetW < 1 {
		targetW = 1
	}

	fg, mask, err := compose.ScaleToWidth(o.Image, o.Mask, targetW)
	if err != nil {
		return err
	}
	if mask == nil {
		mask = pixbuf.MaskFromAlpha(fg)
	}

	if anchor == layout.Tile {
		return compose.Tile(buf, fg, mask, opacity)
	}
	at, err := layout.Resolve(anchor, buf.Width, buf.Height, fg.Width, fg.Height, layout.DefaultPadding)
	if err != nil {
		return err
	}
	return compose.Over(buf, fg, mask, at, opacity)
}

func applyText(buf *pixbuf.Buffer, o *TextOptions, rast textrender.Rasterizer) error {
	sizePt := o.SizePt
	if sizePt <= 0 {
		sizePt = textrender.DefaultSizePt
	}
	opacity := o.Opacity
	if opacity == 0 {
		opacity = DefaultOpacity
	}
	anchor := o.Anchor
	if anchor == "" {
		anchor = layout.BottomRight
	}
	col := o.Color
	if col.A == 0 {
		col = textrender.DefaultColor
	}

	rendered, err := rast.Rasterize(o.Text, sizePt)
	if err != nil {
		return err
	}
	fg, mask := rendered.Tint(col)

	if anchor == layout.Tile {
		return compose.Tile(buf, fg, mask, opacity)
	}
	at, err := layout.Resolve(anchor, buf.Width, buf.Height, fg.Width, fg.Height, layout.DefaultPadding)
	if err != nil {
		return err
	}
	return compose.Over(buf, fg, mask, at, opacity)
}

func applyHidden(buf *pixbuf.Buffer, o *HiddenOptions) error {
	var opts []lsb.Option
	if o.IncludeAlpha {
		opts = append(opts, lsb.WithAlpha())
	}
	return lsb.Embed(buf, []byte(o.Message), opts...)
}
