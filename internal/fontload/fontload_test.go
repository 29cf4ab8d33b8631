package fontload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ttf"))
	require.Error(t, err)
}

func TestLoad_NotAFont(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.ttf")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	got, err := r.Rasterize("fallback", 24)
	require.NoError(t, err)
	require.Greater(t, got.Width, 0)
}

func TestResolve(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.ttf")
		require.NoError(t, os.WriteFile(path, goregular.TTF, 0o644))

		r, err := Resolve(path)
		require.NoError(t, err)
		require.NotNil(t, r)
	})

	t.Run("empty path always resolves", func(t *testing.T) {
		// discovery may or may not find a system font, the builtin
		// face backstops either way
		r, err := Resolve("")
		require.NoError(t, err)
		require.NotNil(t, r)
	})

	t.Run("bad explicit path fails", func(t *testing.T) {
		_, err := Resolve(filepath.Join(t.TempDir(), "absent.ttf"))
		require.Error(t, err)
	})
}

func TestDiscover_NoMatch(t *testing.T) {
	_, err := Discover("definitely-not-a-font-name-anywhere.ttf")
	require.ErrorIs(t, err, ErrNoUsableFont)
}
