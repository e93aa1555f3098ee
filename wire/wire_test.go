package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage() *ImageData {
	return &ImageData{
		Timestamp: 1700000000123456789,
		Width:     2,
		Height:    2,
		Channels:  1,
		DataSize:  4,
		Filename:  "a.png",
		Pixels:    []byte{1, 2, 3, 4},
	}
}

func sampleProcessed() *ProcessedData {
	return &ProcessedData{
		ImageData: *sampleImage(),
		KeyPoints: []KeyPoint{
			{X: 10.5, Y: 20.25, Size: 3.1, Angle: 90.0, Response: 0.8, Octave: 1},
			{X: -1.5, Y: 0, Size: 12.0, Angle: 359.9, Response: 0.01, Octave: -2},
		},
		Descriptors: []float32{0.1, 0.2, 0.3, 0.4, 0.5},
	}
}

func TestEncodeDecodeImageData(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := sampleImage()
		b, err := EncodeImageData(in)
		require.NoError(t, err)

		out, err := DecodeImageData(b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.Equal(t, uint32(4), out.DataSize)
	})

	t.Run("discriminant is first byte", func(t *testing.T) {
		b, err := EncodeImageData(sampleImage())
		require.NoError(t, err)
		assert.Equal(t, byte(TypeImageData), b[0])

		typ, err := PeekType(b)
		require.NoError(t, err)
		assert.Equal(t, TypeImageData, typ)
	})

	t.Run("size mismatch rejected on encode", func(t *testing.T) {
		in := sampleImage()
		in.DataSize = 5
		_, err := EncodeImageData(in)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("oversized filename rejected on encode", func(t *testing.T) {
		in := sampleImage()
		in.Filename = string(make([]byte, MaxFilenameLen+1))
		_, err := EncodeImageData(in)
		assert.ErrorIs(t, err, ErrNameTooLong)
	})

	t.Run("wrong type", func(t *testing.T) {
		b, err := EncodeProcessedData(sampleProcessed())
		require.NoError(t, err)
		_, err = DecodeImageData(b)
		assert.ErrorIs(t, err, ErrWrongType)
	})

	t.Run("unknown discriminant", func(t *testing.T) {
		b, err := EncodeImageData(sampleImage())
		require.NoError(t, err)
		b[0] = 99
		_, err = DecodeImageData(b)
		assert.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("declared filename length above cap rejected", func(t *testing.T) {
		b, err := EncodeImageData(sampleImage())
		require.NoError(t, err)
		// Filename length prefix sits after the discriminant and five fixed
		// fields. Overwrite it with a value above the cap.
		copy(b[25:29], []byte{0x00, 0x00, 0x10, 0x00})
		_, err = DecodeImageData(b)
		assert.ErrorIs(t, err, ErrNameTooLong)
	})

	t.Run("declared pixel size beyond input rejected", func(t *testing.T) {
		in := sampleImage()
		b, err := EncodeImageData(in)
		require.NoError(t, err)
		// Last pixel byte removed: declared DataSize now overruns the input.
		_, err = DecodeImageData(b[:len(b)-1])
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestEncodeDecodeProcessedData(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := sampleProcessed()
		b, err := EncodeProcessedData(in)
		require.NoError(t, err)

		out, err := DecodeProcessedData(b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.Len(t, out.KeyPoints, 2)
		assert.Len(t, out.Descriptors, 5)
	})

	t.Run("keypoints preserved field for field", func(t *testing.T) {
		in := sampleProcessed()
		b, err := EncodeProcessedData(in)
		require.NoError(t, err)

		out, err := DecodeProcessedData(b)
		require.NoError(t, err)
		for i, kp := range in.KeyPoints {
			assert.Equal(t, kp, out.KeyPoints[i], "keypoint %d", i)
		}
		assert.Equal(t, in.Descriptors, out.Descriptors)
	})

	t.Run("empty feature lists", func(t *testing.T) {
		in := &ProcessedData{ImageData: *sampleImage()}
		b, err := EncodeProcessedData(in)
		require.NoError(t, err)

		out, err := DecodeProcessedData(b)
		require.NoError(t, err)
		assert.Empty(t, out.KeyPoints)
		assert.Empty(t, out.Descriptors)
	})

	t.Run("descriptor count not a multiple of keypoints", func(t *testing.T) {
		in := sampleProcessed()
		in.Descriptors = []float32{1, 2, 3} // not 128-d, not 2*k
		b, err := EncodeProcessedData(in)
		require.NoError(t, err)

		out, err := DecodeProcessedData(b)
		require.NoError(t, err)
		assert.Equal(t, in.Descriptors, out.Descriptors)
	})

	t.Run("keypoint count beyond input rejected", func(t *testing.T) {
		in := sampleProcessed()
		b, err := EncodeProcessedData(in)
		require.NoError(t, err)
		// Drop the last descriptor bytes so the declared counts overrun.
		_, err = DecodeProcessedData(b[:len(b)-2])
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("wrong type", func(t *testing.T) {
		b, err := EncodeImageData(sampleImage())
		require.NoError(t, err)
		_, err = DecodeProcessedData(b)
		assert.ErrorIs(t, err, ErrWrongType)
	})
}

// Truncating a valid message at every possible shorter length must produce a
// typed error, never a panic or a silently wrong value.
func TestDecodeTruncationSweep(t *testing.T) {
	img, err := EncodeImageData(sampleImage())
	require.NoError(t, err)
	processed, err := EncodeProcessedData(sampleProcessed())
	require.NoError(t, err)

	t.Run("image", func(t *testing.T) {
		for n := 1; n < len(img); n++ {
			_, err := DecodeImageData(img[:n])
			require.Error(t, err, "length %d", n)
		}
	})

	t.Run("processed", func(t *testing.T) {
		for n := 1; n < len(processed); n++ {
			_, err := DecodeProcessedData(processed[:n])
			require.Error(t, err, "length %d", n)
		}
	})
}

func TestEncodeDecodeHeartbeat(t *testing.T) {
	in := &Heartbeat{AppName: "image-generator", Timestamp: 42}
	b, err := EncodeHeartbeat(in)
	require.NoError(t, err)

	typ, err := PeekType(b)
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, typ)

	out, err := DecodeHeartbeat(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPeekType(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := PeekType(nil)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("shutdown", func(t *testing.T) {
		typ, err := PeekType(EncodeShutdown())
		require.NoError(t, err)
		assert.Equal(t, TypeShutdown, typ)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := PeekType([]byte{0x7f})
		assert.ErrorIs(t, err, ErrUnknownType)
	})
}

func TestDecodeNeverMutatesInput(t *testing.T) {
	b, err := EncodeProcessedData(sampleProcessed())
	require.NoError(t, err)
	snapshot := append([]byte(nil), b...)

	out, err := DecodeProcessedData(b)
	require.NoError(t, err)
	out.Pixels[0] = 0xff
	out.KeyPoints[0].X = -99

	assert.Equal(t, snapshot, b)
}
