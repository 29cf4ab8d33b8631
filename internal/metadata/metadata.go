// Package metadata builds the provenance records stored next to
// processed images.
package metadata

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/fingerprint"
)

const Generator = "WatermarkStation"

// Watermark type labels in pipeline order.
const (
	TypeLogo      = "logo"
	TypeText      = "text"
	TypeInvisible = "invisible"
)

type ContentHash struct {
	Original    string `json:"original"`
	Watermarked string `json:"watermarked"`
	Algorithm   string `json:"algorithm"`
}

type Watermark struct {
	Applied bool     `json:"applied"`
	Types   []string `json:"type"`
}

type Record struct {
	Generator   string      `json:"generator"`
	Timestamp   string      `json:"timestamp"`
	ContentHash ContentHash `json:"content_hash"`
	Watermark   Watermark   `json:"watermark"`
}

func Build(pre, post string, types []string) Record {
	return Record{
		Generator: Generator,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ContentHash: ContentHash{
			Original:    pre,
			Watermarked: post,
			Algorithm:   fingerprint.Algorithm,
		},
		Watermark: Watermark{
			Applied: len(types) > 0,
			Types:   types,
		},
	}
}

// Scan and Value back the record by a JSONB column.

func (r *Record) Scan(value any) error {
	if value == nil {
		*r = Record{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for metadata.Record")
	}

	if err := json.Unmarshal(b, r); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Record: %w", err)
	}
	return nil
}

func (r Record) Value() (driver.Value, error) {
	res, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Record to JSONB: %w", err)
	}
	return res, nil
}
