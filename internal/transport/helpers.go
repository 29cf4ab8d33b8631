package transport

import (
	"errors"
	"io"
	"log"
	"strconv"

	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/wb-go/wbf/ginext"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrTaskNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrEmptyLogo),
		errors.Is(err, model.ErrEmptyMask),
		errors.Is(err, model.ErrNoEffect),
		errors.Is(err, model.ErrMaskWithoutLogo),
		errors.Is(err, model.ErrIncorrectAnchor),
		errors.Is(err, model.ErrIncorrectRange),
		errors.Is(err, model.ErrIncorrectStatus),
		errors.Is(err, model.ErrMessageTooLong),
		errors.Is(err, model.ErrUnsupportedFormat):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}

// parseWatermarkParams reads the multipart form fields. Values that fail
// to parse stay zero and pick up defaults later.
func parseWatermarkParams(ctx *ginext.Context) model.Params {
	var p model.Params

	p.Anchor = ctx.PostForm("anchor")
	p.Text = ctx.PostForm("text")
	p.Color = ctx.PostForm("color")
	p.Message = ctx.PostForm("message")
	p.Format = ctx.PostForm("format")

	p.Scale, _ = strconv.ParseFloat(ctx.PostForm("scale"), 64)
	p.Opacity, _ = strconv.ParseFloat(ctx.PostForm("opacity"), 64)
	p.FontSize, _ = strconv.ParseFloat(ctx.PostForm("font_size"), 64)
	p.IncludeAlpha, _ = strconv.ParseBool(ctx.PostForm("include_alpha"))

	return p
}
