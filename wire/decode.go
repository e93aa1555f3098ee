package wire

import (
	"encoding/binary"
	"math"
)

// reader is a bounds-checked cursor over an encoded message. Every read
// either advances the cursor or reports ErrTruncated; it never reads past
// the end of the input.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) float32() (float32, error) {
	v, err := r.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// str reads a length-prefixed string rejecting declared lengths above cap.
func (r *reader) str(maxLen int) (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if int(n) > maxLen {
		return "", ErrNameTooLong
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) discriminant(want MessageType) error {
	b, err := r.bytes(1)
	if err != nil {
		return err
	}
	got := MessageType(b[0])
	if got == want {
		return nil
	}
	switch got {
	case TypeImageData, TypeProcessedData, TypeHeartbeat, TypeShutdown:
		return ErrWrongType
	}
	return ErrUnknownType
}

func (r *reader) imageFields(d *ImageData) error {
	var err error
	if d.Timestamp, err = r.uint64(); err != nil {
		return err
	}
	if d.Width, err = r.uint32(); err != nil {
		return err
	}
	if d.Height, err = r.uint32(); err != nil {
		return err
	}
	if d.Channels, err = r.uint32(); err != nil {
		return err
	}
	if d.DataSize, err = r.uint32(); err != nil {
		return err
	}
	if d.Filename, err = r.str(MaxFilenameLen); err != nil {
		return err
	}
	pixels, err := r.bytes(int(d.DataSize))
	if err != nil {
		return err
	}
	d.Pixels = append([]byte(nil), pixels...)
	return nil
}

// DecodeImageData parses a TypeImageData message. Trailing bytes beyond the
// declared pixel payload are ignored.
func DecodeImageData(b []byte) (*ImageData, error) {
	if len(b) < imageHeaderLen {
		return nil, ErrTruncated
	}
	r := &reader{buf: b}
	if err := r.discriminant(TypeImageData); err != nil {
		return nil, err
	}
	var d ImageData
	if err := r.imageFields(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeProcessedData parses a TypeProcessedData message. The returned
// keypoint and descriptor slices hold exactly as many entries as the message
// declares; a count that overruns the input rejects the whole message.
func DecodeProcessedData(b []byte) (*ProcessedData, error) {
	if len(b) < imageHeaderLen {
		return nil, ErrTruncated
	}
	r := &reader{buf: b}
	if err := r.discriminant(TypeProcessedData); err != nil {
		return nil, err
	}
	var d ProcessedData
	if err := r.imageFields(&d.ImageData); err != nil {
		return nil, err
	}

	numKeyPoints, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(numKeyPoints)*keyPointLen {
		return nil, ErrTruncated
	}
	d.KeyPoints = make([]KeyPoint, numKeyPoints)
	for i := range d.KeyPoints {
		kp := &d.KeyPoints[i]
		if kp.X, err = r.float32(); err != nil {
			return nil, err
		}
		if kp.Y, err = r.float32(); err != nil {
			return nil, err
		}
		if kp.Size, err = r.float32(); err != nil {
			return nil, err
		}
		if kp.Angle, err = r.float32(); err != nil {
			return nil, err
		}
		if kp.Response, err = r.float32(); err != nil {
			return nil, err
		}
		octave, err := r.uint32()
		if err != nil {
			return nil, err
		}
		kp.Octave = int32(octave)
	}

	numDescriptors, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(numDescriptors)*4 {
		return nil, ErrTruncated
	}
	d.Descriptors = make([]float32, numDescriptors)
	for i := range d.Descriptors {
		if d.Descriptors[i], err = r.float32(); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

// DecodeHeartbeat parses a TypeHeartbeat message.
func DecodeHeartbeat(b []byte) (*Heartbeat, error) {
	r := &reader{buf: b}
	if err := r.discriminant(TypeHeartbeat); err != nil {
		return nil, err
	}
	var h Heartbeat
	var err error
	if h.AppName, err = r.str(MaxFilenameLen); err != nil {
		return nil, err
	}
	if h.Timestamp, err = r.uint64(); err != nil {
		return nil, err
	}
	return &h, nil
}
