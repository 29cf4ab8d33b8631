// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/metadata"
	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

//---------------------

type Task struct {
	UID        uuid.UUID        `json:"uid"`
	SourceKey  string           `json:"-"`
	LogoKey    string           `json:"-"`
	MaskKey    string           `json:"-"`
	ResultKey  string           `json:"-"`
	Params     Params           `json:"params"`
	Status     Status           `json:"status,omitempty"`
	Provenance *metadata.Record `json:"provenance,omitempty"`
	ErrMsg     string           `json:"error,omitempty"`
	CreatedAt  *time.Time       `json:"created_at,omitempty"`
	UpdatedAt  *time.Time       `json:"updated_at,omitempty"`
}

// Params travels as a single JSONB column and as the task payload on
// the queue. Zero values mean "use the defaults" downstream.
type Params struct {
	Anchor       string  `json:"anchor,omitempty"`
	Scale        float64 `json:"scale,omitempty"`
	Opacity      float64 `json:"opacity,omitempty"`
	Text         string  `json:"text,omitempty"`
	Color        string  `json:"color,omitempty"`
	FontSize     float64 `json:"font_size,omitempty"`
	Message      string  `json:"message,omitempty"`
	IncludeAlpha bool    `json:"include_alpha,omitempty"`
	Format       string  `json:"format,omitempty"`
}

func (p *Params) Scan(value any) error {
	if value == nil {
		*p = Params{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for Params")
	}

	if err := json.Unmarshal(b, p); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Params: %w", err)
	}
	return nil
}

func (p Params) Value() (driver.Value, error) {
	res, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Params to JSONB: %w", err)
	}

	return res, nil
}

// HasEffect reports whether the params ask for at least one watermark.
// The logo stage is driven by the uploaded file, so it is checked at
// the service level, not here.
func (p Params) HasEffect(hasLogo bool) bool {
	return hasLogo || p.Text != "" || p.Message != ""
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

type TaskCreateData struct {
	Params          Params
	OrigImg         multipart.File
	OrigContentType string
	OrigImgSize     int64
	LogoImg         multipart.File
	LogoContentType string
	LogoImgSize     int64
	MaskImg         multipart.File
	MaskContentType string
	MaskImgSize     int64
}

// ------------------

var (
	ErrCommon500         error = errors.New("something went wrong. Try again later")          // 500
	ErrIncorrectQuery    error = errors.New("incorrect query parameters")                     // 400
	ErrIncorrectID       error = errors.New("incorrect task UUID")                            // 400
	ErrTaskNotFound      error = errors.New("specified task UUID doesn't exist")              // 404
	ErrResultNotReady    error = errors.New("requested image is not processed yet")           // 404
	ErrEmptySource       error = errors.New("empty/incorrect source image provided")          // 400
	ErrEmptyLogo         error = errors.New("empty/incorrect logo image provided")            // 400
	ErrEmptyMask         error = errors.New("empty/incorrect mask image provided")            // 400
	ErrNoEffect          error = errors.New("at least one of logo/text/message is required")  // 400
	ErrMaskWithoutLogo   error = errors.New("mask image requires a logo image")               // 400
	ErrIncorrectAnchor   error = errors.New("anchor is not supported")                        // 400
	ErrIncorrectRange    error = errors.New("scale/opacity/font_size values are out of range") // 400
	ErrIncorrectStatus   error = errors.New("incorrect status provided")                      // 400
	ErrUnsupportedFormat error = errors.New("unsupported image format")                       // 400
	ErrMessageTooLong    error = errors.New("hidden message doesn't fit the provided image")  // 400
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	WEBP: ".webp",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	WEBP: true,
}
