package wire

import (
	"encoding/binary"
	"math"
)

func appendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

func appendUint64(b []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(b, v)
}

func appendFloat32(b []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(b, math.Float32bits(v))
}

func appendString(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func (d *ImageData) validate() error {
	if len(d.Filename) > MaxFilenameLen {
		return ErrNameTooLong
	}
	if int(d.DataSize) != len(d.Pixels) {
		return ErrSizeMismatch
	}
	return nil
}

func appendImageFields(b []byte, d *ImageData) []byte {
	b = appendUint64(b, d.Timestamp)
	b = appendUint32(b, d.Width)
	b = appendUint32(b, d.Height)
	b = appendUint32(b, d.Channels)
	b = appendUint32(b, d.DataSize)
	b = appendString(b, d.Filename)
	return append(b, d.Pixels...)
}

// EncodeImageData serializes d as a TypeImageData message.
func EncodeImageData(d *ImageData) ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, imageHeaderLen+len(d.Filename)+len(d.Pixels))
	b = append(b, byte(TypeImageData))
	return appendImageFields(b, d), nil
}

// EncodeProcessedData serializes d as a TypeProcessedData message: the
// ImageData fields followed by the count-prefixed keypoint list and the
// count-prefixed flat descriptor values.
func EncodeProcessedData(d *ProcessedData) ([]byte, error) {
	if err := d.ImageData.validate(); err != nil {
		return nil, err
	}
	size := imageHeaderLen + len(d.Filename) + len(d.Pixels) +
		4 + len(d.KeyPoints)*keyPointLen + 4 + len(d.Descriptors)*4
	b := make([]byte, 0, size)
	b = append(b, byte(TypeProcessedData))
	b = appendImageFields(b, &d.ImageData)

	b = appendUint32(b, uint32(len(d.KeyPoints)))
	for i := range d.KeyPoints {
		kp := &d.KeyPoints[i]
		b = appendFloat32(b, kp.X)
		b = appendFloat32(b, kp.Y)
		b = appendFloat32(b, kp.Size)
		b = appendFloat32(b, kp.Angle)
		b = appendFloat32(b, kp.Response)
		b = appendUint32(b, uint32(kp.Octave))
	}

	b = appendUint32(b, uint32(len(d.Descriptors)))
	for _, v := range d.Descriptors {
		b = appendFloat32(b, v)
	}
	return b, nil
}

// EncodeHeartbeat serializes h as a TypeHeartbeat message.
func EncodeHeartbeat(h *Heartbeat) ([]byte, error) {
	if len(h.AppName) > MaxFilenameLen {
		return nil, ErrNameTooLong
	}
	b := make([]byte, 0, 1+4+len(h.AppName)+8)
	b = append(b, byte(TypeHeartbeat))
	b = appendString(b, h.AppName)
	b = appendUint64(b, h.Timestamp)
	return b, nil
}

// EncodeShutdown serializes the bodyless TypeShutdown message.
func EncodeShutdown() []byte {
	return []byte{byte(TypeShutdown)}
}
