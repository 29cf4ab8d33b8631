package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

func TestCompute_Stable(t *testing.T) {
	a, err := pixbuf.Filled(16, 16, 3, 128)
	require.NoError(t, err)
	b, err := pixbuf.Filled(16, 16, 3, 128)
	require.NoError(t, err)

	ha, err := Compute(a)
	require.NoError(t, err)
	hb, err := Compute(b)
	require.NoError(t, err)

	require.Equal(t, ha, hb)
	require.Len(t, ha, 64, "sha256 hex")
}

func TestCompute_SensitiveToSamples(t *testing.T) {
	a, err := pixbuf.Filled(16, 16, 3, 128)
	require.NoError(t, err)

	before, err := Compute(a)
	require.NoError(t, err)

	a.Samples[0] ^= 1 // single LSB flip
	after, err := Compute(a)
	require.NoError(t, err)

	require.NotEqual(t, before, after)
}

func TestCompute_SensitiveToExtent(t *testing.T) {
	a, err := pixbuf.Filled(8, 4, 3, 10)
	require.NoError(t, err)
	b, err := pixbuf.Filled(4, 8, 3, 10)
	require.NoError(t, err)

	ha, err := Compute(a)
	require.NoError(t, err)
	hb, err := Compute(b)
	require.NoError(t, err)

	require.NotEqual(t, ha, hb)
}

func TestCompute_NilBuffer(t *testing.T) {
	_, err := Compute(nil)
	require.Error(t, err)
}

func TestSum_KnownVector(t *testing.T) {
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Sum([]byte("abc")))
}
