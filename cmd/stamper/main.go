// Package main (in stamper-subfolder) provides the standalone batch watermarking tool
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/fontload"
	"github.com/InkLayer/WatermarkStation/internal/imagecodec"
	"github.com/InkLayer/WatermarkStation/internal/layout"
	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/metadata"
	"github.com/InkLayer/WatermarkStation/internal/pipeline"
	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
	"github.com/InkLayer/WatermarkStation/internal/textrender"
	"github.com/wb-go/wbf/zlog"
)

const (
	demoSide    = 128
	demoGray    = 128
	demoMessage = "invisible ink survives the round trip"
)

type cliOptions struct {
	in      string
	out     string
	logo    string
	mask    string
	text    string
	color   string
	anchor  string
	message string
	format  string
	font    string
	prefix  string
	extract string
	size    float64
	scale   float64
	opacity float64
	maxLen  int
	meta    bool
	demo    bool
}

func main() {
	opts := parseFlags()

	zlog.InitConsole()
	if err := zlog.SetLevel("warn"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.demo:
		runDemo(opts)
	case opts.extract != "":
		runExtract(opts)
	default:
		runBatch(ctx, opts)
	}
}

func parseFlags() cliOptions {
	var o cliOptions
	flag.StringVar(&o.in, "in", "", "glob of input images, e.g. 'photos/*.jpg'")
	flag.StringVar(&o.out, "out", ".", "output directory")
	flag.StringVar(&o.logo, "logo", "", "logo image file")
	flag.StringVar(&o.mask, "mask", "", "logo mask file, 255 marks transparent regions")
	flag.StringVar(&o.text, "text", "", "visible text watermark")
	flag.StringVar(&o.color, "color", "", "text color as #RRGGBB")
	flag.StringVar(&o.anchor, "anchor", string(layout.BottomRight), "placement: bottom_right, bottom_left, top_right, top_left, center, tile")
	flag.StringVar(&o.message, "message", "", "hidden message to embed")
	flag.StringVar(&o.format, "format", "png", "output format: png, jpeg, gif, webp")
	flag.StringVar(&o.font, "font", "", "font file for the text watermark, system discovery when empty")
	flag.StringVar(&o.prefix, "prefix", "watermarked", "output filename prefix")
	flag.StringVar(&o.extract, "extract", "", "read back a hidden message from this file and exit")
	flag.Float64Var(&o.size, "size", 0, "text size in points, 0 picks the default")
	flag.Float64Var(&o.scale, "scale", 0, "logo width as a fraction of the base width, 0 picks the default")
	flag.Float64Var(&o.opacity, "opacity", 0, "watermark opacity in [0..1], 0 picks the default")
	flag.IntVar(&o.maxLen, "maxlen", 4096, "read window for -extract, in message bytes")
	flag.BoolVar(&o.meta, "meta", false, "write a provenance JSON sidecar next to each output")
	flag.BoolVar(&o.demo, "demo", false, "embed and read back a message on a synthetic carrier, then exit")
	flag.Parse()
	return o
}

// runDemo exercises the hidden channel on a uniform gray carrier.
func runDemo(o cliOptions) {
	msg := o.message
	if msg == "" {
		msg = demoMessage
	}

	buf, err := pixbuf.Filled(demoSide, demoSide, pixbuf.ChannelsRGB, demoGray)
	if err != nil {
		log.Fatalf("Failed to build the demo carrier: %v", err)
	}
	fmt.Printf("Carrier %dx%d gray, capacity %d message bytes\n", demoSide, demoSide, lsb.Capacity(buf))

	if err := lsb.Embed(buf, []byte(msg)); err != nil {
		log.Fatalf("Failed to embed message: %v", err)
	}
	got, err := lsb.Extract(buf, len(msg)+16)
	if err != nil {
		log.Fatalf("Failed to extract message: %v", err)
	}
	fmt.Printf("Embedded %d bytes, extracted %q (terminated=%v, lossy=%v)\n", len(msg), got.Text, got.Terminated, got.Lossy)
	if got.Text != msg {
		log.Fatalf("Round-trip mismatch: embedded %q", msg)
	}
}

func runExtract(o cliOptions) {
	f, err := os.Open(o.extract)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", o.extract, err)
	}
	defer f.Close()

	buf, _, err := imagecodec.Decode(f)
	if err != nil {
		log.Fatalf("Failed to decode %s: %v", o.extract, err)
	}

	msg, err := lsb.Extract(buf, o.maxLen)
	if err != nil {
		log.Fatalf("Failed to extract message: %v", err)
	}
	if !msg.Terminated {
		log.Println("No terminator found inside the read window, message may be truncated")
	}
	if msg.Lossy {
		log.Println("Message carried invalid UTF-8, bad sequences were replaced")
	}
	fmt.Println(msg.Text)
}

func runBatch(ctx context.Context, o cliOptions) {
	if o.in == "" {
		log.Fatalf("No inputs: provide -in glob, or use -demo / -extract")
	}
	if o.logo == "" && o.text == "" && o.message == "" {
		log.Fatalf("Nothing to apply: provide -logo, -text or -message")
	}

	files, err := filepath.Glob(o.in)
	if err != nil {
		log.Fatalf("Bad -in pattern %q: %v", o.in, err)
	}
	if len(files) == 0 {
		log.Fatalf("No files match %q", o.in)
	}

	outFormat, err := imagecodec.ParseFormat(o.format)
	if err != nil {
		log.Fatalf("Bad -format value %q: %v", o.format, err)
	}

	popts := buildOptions(o)

	batch := make([]*pixbuf.Buffer, 0, len(files))
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", path, err)
		}
		buf, _, err := imagecodec.Decode(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to decode %s: %v", path, err)
		}
		batch = append(batch, buf)
	}

	results, err := pipeline.Run(ctx, batch, popts)
	if err != nil {
		log.Fatalf("Failed to run watermark stages: %v", err)
	}

	if err := os.MkdirAll(o.out, 0o755); err != nil {
		log.Fatalf("Failed to create output dir %s: %v", o.out, err)
	}

	stamp := time.Now().Format("20060102-150405")
	failed := 0
	for i, res := range results {
		if res.Err != nil {
			log.Printf("Failed to process %s: %v", files[i], res.Err)
			failed++
			continue
		}

		name := fmt.Sprintf("%s_%s_%03d%s", o.prefix, stamp, i+1, outFormat.Ext())
		dst := filepath.Join(o.out, name)
		if err := writeOutput(dst, res.Buffer, outFormat); err != nil {
			log.Printf("Failed to write %s: %v", dst, err)
			failed++
			continue
		}
		if o.meta {
			if err := writeSidecar(dst, res); err != nil {
				log.Printf("Failed to write sidecar for %s: %v", dst, err)
			}
		}
		log.Printf("%s -> %s", files[i], dst)
	}

	if failed > 0 {
		log.Fatalf("%d of %d images failed", failed, len(results))
	}
}

func buildOptions(o cliOptions) pipeline.Options {
	anchor, err := layout.ParseAnchor(strings.ToLower(strings.TrimSpace(o.anchor)))
	if err != nil {
		log.Fatalf("Bad -anchor value %q: %v", o.anchor, err)
	}

	popts := pipeline.Options{}

	if o.logo != "" {
		logoOpts := &pipeline.LogoOptions{
			Image:   loadBuffer(o.logo),
			Anchor:  anchor,
			Scale:   o.scale,
			Opacity: o.opacity,
		}
		if o.mask != "" {
			logoOpts.Mask = pixbuf.MaskFromImage(loadBuffer(o.mask).ToNRGBA())
		}
		popts.Logo = logoOpts
	} else if o.mask != "" {
		log.Fatalf("-mask makes no sense without -logo")
	}

	if o.text != "" {
		textOpts := &pipeline.TextOptions{
			Text:    o.text,
			Anchor:  anchor,
			SizePt:  o.size,
			Opacity: o.opacity,
		}
		if o.color != "" {
			col, err := textrender.ParseHexColor(o.color)
			if err != nil {
				log.Fatalf("Bad -color value %q: %v", o.color, err)
			}
			textOpts.Color = col
		}
		popts.Text = textOpts

		rast, err := fontload.Resolve(o.font)
		if err != nil {
			log.Fatalf("Failed to load a font for text watermarks: %v", err)
		}
		popts.Rasterizer = rast
	}

	if o.message != "" {
		popts.Hidden = &pipeline.HiddenOptions{Message: o.message}
	}

	return popts
}

func loadBuffer(path string) *pixbuf.Buffer {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	buf, _, err := imagecodec.Decode(f)
	if err != nil {
		log.Fatalf("Failed to decode %s: %v", path, err)
	}
	return buf
}

func writeOutput(dst string, buf *pixbuf.Buffer, format imagecodec.Format) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := imagecodec.Encode(f, buf, format, imagecodec.DefaultQuality); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSidecar(dst string, res pipeline.Result) error {
	rec := metadata.Build(res.PreHash, res.PostHash, res.Types)
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dst+".json", b, 0o644)
}
