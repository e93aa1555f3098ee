package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianCerberus/imageflow/wire"
)

func testFrame(width, height, channels int, pixels []byte) *wire.ImageData {
	return &wire.ImageData{
		Width:    uint32(width),
		Height:   uint32(height),
		Channels: uint32(channels),
		DataSize: uint32(len(pixels)),
		Filename: "test.png",
		Pixels:   pixels,
	}
}

func TestFunc(t *testing.T) {
	e := Func(func(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error) {
		return []wire.KeyPoint{{X: 1}}, []float32{0.5}, nil
	})

	kps, descs, err := e.Extract(testFrame(3, 1, 1, []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Len(t, kps, 1)
	assert.Equal(t, []float32{0.5}, descs)
}

func TestSafe(t *testing.T) {
	t.Run("passes results through", func(t *testing.T) {
		e := Safe(Func(func(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error) {
			return []wire.KeyPoint{{X: 2, Y: 3}}, nil, nil
		}))

		kps, _, err := e.Extract(nil)
		require.NoError(t, err)
		assert.Equal(t, float32(2), kps[0].X)
	})

	t.Run("passes errors through", func(t *testing.T) {
		want := errors.New("bad image")
		e := Safe(Func(func(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error) {
			return nil, nil, want
		}))

		_, _, err := e.Extract(nil)
		assert.ErrorIs(t, err, want)
	})

	t.Run("converts panic to error", func(t *testing.T) {
		e := Safe(Func(func(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error) {
			panic("cv assertion failed")
		}))

		var kps []wire.KeyPoint
		var err error
		assert.NotPanics(t, func() {
			kps, _, err = e.Extract(testFrame(1, 1, 1, []byte{0xff}))
		})
		require.Error(t, err)
		assert.Nil(t, kps)
		assert.Contains(t, err.Error(), "cv assertion failed")
	})
}
