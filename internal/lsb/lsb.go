// Package lsb hides and recovers byte messages in the least-significant
// bits of pixel samples.
package lsb

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

// terminatorLen zero bytes mark the end of an embedded message.
const terminatorLen = 4

var (
	ErrCapacityExceeded error = errors.New("message does not fit into the carrier")
	ErrNegativeLength   error = errors.New("negative message length")
	ErrNilCarrier       error = errors.New("nil carrier buffer")
)

// Termination selects how the extractor recognizes the end of a message.
type Termination int

const (
	// TerminateSentinel stops at four consecutive zero bytes, mirroring
	// the embedder. Shorter zero runs are dropped from the output.
	TerminateSentinel Termination = iota
	// TerminateFirstZero stops at the first zero byte. Kept for reading
	// carriers written by older tools.
	TerminateFirstZero
)

type options struct {
	includeAlpha bool
	termination  Termination
}

type Option func(*options)

// WithAlpha embeds into alpha samples too. The default leaves the alpha
// channel untouched so transparency survives the carrier.
func WithAlpha() Option {
	return func(o *options) { o.includeAlpha = true }
}

func WithTermination(t Termination) Option {
	return func(o *options) { o.termination = t }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func usableBits(b *pixbuf.Buffer, o options) int {
	if b.Channels == pixbuf.ChannelsRGBA && !o.includeAlpha {
		return b.Width * b.Height * 3
	}
	return len(b.Samples)
}

// sampleIndex maps the k-th usable bit slot to its position in the sample
// slice, stepping over alpha bytes when those are excluded.
func sampleIndex(k int, b *pixbuf.Buffer, o options) int {
	if b.Channels == pixbuf.ChannelsRGBA && !o.includeAlpha {
		return (k/3)*pixbuf.ChannelsRGBA + k%3
	}
	return k
}

// Capacity returns how many message bytes the carrier can hold after the
// terminator is accounted for.
func Capacity(b *pixbuf.Buffer, opts ...Option) int {
	if b == nil {
		return 0
	}
	n := usableBits(b, buildOptions(opts))/8 - terminatorLen
	if n < 0 {
		return 0
	}
	return n
}

// Embed writes message plus the zero terminator into the carrier's sample
// LSBs, most significant bit of each byte first. The carrier is modified
// only when the whole payload fits.
func Embed(b *pixbuf.Buffer, message []byte, opts ...Option) error {
	if b == nil {
		return ErrNilCarrier
	}
	if err := b.Validate(); err != nil {
		return err
	}
	o := buildOptions(opts)

	need := (len(message) + terminatorLen) * 8
	if have := usableBits(b, o); need > have {
		return fmt.Errorf("%w: need %d bits, carrier holds %d", ErrCapacityExceeded, need, have)
	}

	payload := make([]byte, 0, len(message)+terminatorLen)
	payload = append(payload, message...)
	payload = append(payload, make([]byte, terminatorLen)...)

	k := 0
	for _, bt := range payload {
		for shift := 7; shift >= 0; shift-- {
			idx := sampleIndex(k, b, o)
			b.Samples[idx] = (b.Samples[idx] & 0xFE) | ((bt >> shift) & 1)
			k++
		}
	}
	return nil
}

// Message is the outcome of an extraction.
type Message struct {
	Text string
	// Lossy is set when the carrier bytes were not valid UTF-8 and
	// replacement characters were substituted.
	Lossy bool
	// Terminated reports whether the end marker was found inside the
	// read window. False means the message was cut at the window edge.
	Terminated bool
}

// Extract reads up to maxLen message bytes plus the terminator window from
// the carrier and decodes them as UTF-8, substituting U+FFFD for invalid
// sequences instead of failing.
func Extract(b *pixbuf.Buffer, maxLen int, opts ...Option) (Message, error) {
	raw, terminated, err := ExtractRaw(b, maxLen, opts...)
	if err != nil {
		return Message{}, err
	}

	msg := Message{Text: string(raw), Terminated: terminated}
	if !utf8.Valid(raw) {
		msg.Text = strings.ToValidUTF8(msg.Text, string(utf8.RuneError))
		msg.Lossy = true
	}
	return msg, nil
}

// ExtractRaw returns the undecoded message bytes and whether the end
// marker was seen.
func ExtractRaw(b *pixbuf.Buffer, maxLen int, opts ...Option) ([]byte, bool, error) {
	if b == nil {
		return nil, false, ErrNilCarrier
	}
	if err := b.Validate(); err != nil {
		return nil, false, err
	}
	if maxLen < 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrNegativeLength, maxLen)
	}
	o := buildOptions(opts)

	window := (maxLen + terminatorLen) * 8
	if avail := usableBits(b, o); window > avail {
		window = avail
	}

	out := make([]byte, 0, maxLen)
	nullRun := 0
	for i := 0; i+8 <= window; i += 8 {
		var bt byte
		for j := 0; j < 8; j++ {
			bt = bt<<1 | (b.Samples[sampleIndex(i+j, b, o)] & 1)
		}

		if o.termination == TerminateFirstZero {
			if bt == 0 {
				return out, true, nil
			}
			out = append(out, bt)
			continue
		}

		if bt == 0 {
			nullRun++
			if nullRun >= terminatorLen {
				return out, true, nil
			}
			continue
		}
		nullRun = 0
		out = append(out, bt)
	}
	return out, false, nil
}
