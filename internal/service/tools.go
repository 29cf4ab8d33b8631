package service

import (
	"fmt"
	"strings"

	"github.com/InkLayer/WatermarkStation/internal/imagecodec"
	"github.com/InkLayer/WatermarkStation/internal/layout"
	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/InkLayer/WatermarkStation/internal/textrender"
)

// Read window for synchronous extraction, in message bytes.
const defaultExtractWindow = 4096

func validateQueryParams(req *model.ListRequest) {
	// Handle empty values, assign defaults where needed
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}
	if req.Sort == "" {
		req.Sort = model.ByCreated
	}
	if req.Order == "" {
		req.Order = model.OrderDESC
	}

	// Validate the non-empty sort field
	req.Sort = strings.ToLower(req.Sort)
	req.Sort = strings.TrimSpace(req.Sort)
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "uid"
	case strings.Contains(req.Sort, model.ByCreated):
		req.Sort = "created_at"
	default:
		req.Sort = "created_at" // newest-first by default
	}

	// Validate the non-empty order
	req.Order = strings.ToLower(req.Order)
	req.Order = strings.TrimSpace(req.Order)
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	case strings.Contains(req.Order, model.OrderDESC):
		req.Order = "DESC"
	default:
		req.Order = "DESC"
	}
}

func validateNormalizeTaskInfo(raw *model.TaskCreateData, clean *model.Task) error {
	// source upload must be a known image type
	if raw.OrigImg == nil || raw.OrigImgSize <= 0 || !model.InImageTypeMap[raw.OrigContentType] {
		return model.ErrEmptySource
	}

	// a task without a single watermark is pointless
	if !raw.Params.HasEffect(raw.LogoImg != nil) {
		return model.ErrNoEffect
	}

	// logo and mask uploads, when present, must be valid images
	if raw.LogoImg != nil && (raw.LogoImgSize <= 0 || !model.InImageTypeMap[raw.LogoContentType]) {
		return model.ErrEmptyLogo
	}
	if raw.MaskImg != nil {
		if raw.LogoImg == nil {
			return model.ErrMaskWithoutLogo
		}
		if raw.MaskImgSize <= 0 || !model.InImageTypeMap[raw.MaskContentType] {
			return model.ErrEmptyMask
		}
	}

	clean.Params = raw.Params

	return validateNormalizeParams(clean)
}

// validateNormalizeParams checks the numeric ranges and rewrites
// recoverable values. Zeroes stay zeroes: the processing stage fills in
// its own defaults.
func validateNormalizeParams(input *model.Task) error {
	p := &input.Params

	p.Anchor = strings.ToLower(strings.TrimSpace(p.Anchor))
	if p.Anchor == "" {
		p.Anchor = string(layout.BottomRight)
	}
	if _, err := layout.ParseAnchor(p.Anchor); err != nil {
		return model.ErrIncorrectAnchor
	}

	if p.Scale < 0 || p.Scale > 1 {
		return model.ErrIncorrectRange
	}
	if p.Opacity < 0 || p.Opacity > 1 {
		return model.ErrIncorrectRange
	}
	if p.FontSize < 0 {
		return model.ErrIncorrectRange
	}

	// malformed color is recoverable: fall back to white and leave a note
	if p.Text != "" && p.Color != "" {
		if _, err := textrender.ParseHexColor(p.Color); err != nil {
			appendNote(input, fmt.Sprintf("malformed color %q: using default white", p.Color))
			p.Color = ""
		}
	}

	if p.Format == "" {
		p.Format = string(imagecodec.PNG)
	} else {
		f, err := imagecodec.ParseFormat(p.Format)
		if err != nil {
			return model.ErrUnsupportedFormat
		}
		p.Format = string(f)
	}

	return nil
}

func appendNote(t *model.Task, note string) {
	if t.ErrMsg == "" {
		t.ErrMsg = note
		return
	}
	t.ErrMsg += "; " + note
}
