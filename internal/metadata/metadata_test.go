package metadata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	rec := Build("aaa", "bbb", []string{TypeLogo, TypeInvisible})

	require.Equal(t, Generator, rec.Generator)
	require.Equal(t, "aaa", rec.ContentHash.Original)
	require.Equal(t, "bbb", rec.ContentHash.Watermarked)
	require.Equal(t, "SHA-256", rec.ContentHash.Algorithm)
	require.True(t, rec.Watermark.Applied)
	require.Equal(t, []string{"logo", "invisible"}, rec.Watermark.Types)

	_, err := time.Parse(time.RFC3339, rec.Timestamp)
	require.NoError(t, err)
}

func TestBuild_NothingApplied(t *testing.T) {
	rec := Build("same", "same", nil)
	require.False(t, rec.Watermark.Applied)
}

func TestRecord_JSONShape(t *testing.T) {
	rec := Build("x", "y", []string{TypeText})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "generator")
	require.Contains(t, raw, "content_hash")
	require.Contains(t, raw, "watermark")

	wm, ok := raw["watermark"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, wm, "type", "list field keeps the original wire name")
}

func TestRecord_ScanValue(t *testing.T) {
	rec := Build("pre", "post", []string{TypeLogo})

	v, err := rec.Value()
	require.NoError(t, err)

	var got Record
	require.NoError(t, got.Scan(v))
	require.Equal(t, rec, got)
}

func TestRecord_ScanNil(t *testing.T) {
	got := Build("a", "b", nil)
	require.NoError(t, got.Scan(nil))
	require.Equal(t, Record{}, got)
}

func TestRecord_ScanBadType(t *testing.T) {
	var got Record
	require.Error(t, got.Scan(42))
}
