// Package wire implements the binary message format exchanged between
// pipeline stages. Every message starts with a one-byte type discriminant
// followed by big-endian fixed-width fields; variable-length fields carry a
// 4-byte big-endian length prefix. Floats are IEEE-754 single precision,
// written as their big-endian bit pattern.
//
// Encoding is deterministic. Decoding is a bounds-checked parse that returns
// typed errors for malformed input and never panics. The format is
// self-describing enough to be read by any peer regardless of host byte
// order, which is what allows the stages to run as separate processes.
package wire

import "errors"

// MessageType is the leading discriminant byte of every encoded message.
type MessageType byte

const (
	TypeImageData     MessageType = 1
	TypeProcessedData MessageType = 2
	TypeHeartbeat     MessageType = 3
	TypeShutdown      MessageType = 4
)

// MaxFilenameLen caps the encoded length of ImageData.Filename. A declared
// filename length above the cap rejects the whole message: silently
// substituting an empty string would leave the remaining parse desynchronized
// from the row counts the sink derives from it.
const MaxFilenameLen = 256

// imageHeaderLen is the smallest possible ImageData message: discriminant,
// timestamp, four uint32 fields, and an empty length-prefixed filename.
const imageHeaderLen = 1 + 8 + 4*4 + 4

// keyPointLen is the encoded size of one KeyPoint: five float32 fields plus
// the int32 octave.
const keyPointLen = 6 * 4

var (
	// ErrTruncated reports input that ends before a declared field does.
	ErrTruncated = errors.New("wire: truncated message")
	// ErrWrongType reports a well-formed discriminant for a different decoder.
	ErrWrongType = errors.New("wire: wrong message type")
	// ErrUnknownType reports a discriminant outside the known set.
	ErrUnknownType = errors.New("wire: unknown message type")
	// ErrNameTooLong reports a filename above MaxFilenameLen.
	ErrNameTooLong = errors.New("wire: filename exceeds maximum length")
	// ErrSizeMismatch reports an ImageData whose DataSize does not match the
	// pixel payload it carries.
	ErrSizeMismatch = errors.New("wire: data size does not match payload length")
)

// ImageData is a captured frame and its metadata. DataSize is the declared
// length of Pixels; the two must agree before encoding.
type ImageData struct {
	Timestamp uint64
	Width     uint32
	Height    uint32
	Channels  uint32
	DataSize  uint32
	Filename  string
	Pixels    []byte
}

// KeyPoint is one detected feature. The codec treats every field as opaque;
// only finiteness is expected.
type KeyPoint struct {
	X        float32
	Y        float32
	Size     float32
	Angle    float32
	Response float32
	Octave   int32
}

// ProcessedData is an ImageData plus the features extracted from it. The
// descriptor values are a flat sequence; the codec does not assume any fixed
// dimensionality per keypoint.
type ProcessedData struct {
	ImageData
	KeyPoints   []KeyPoint
	Descriptors []float32
}

// Heartbeat is a liveness announcement carrying the sender's name and a
// wall-clock timestamp in nanoseconds.
type Heartbeat struct {
	AppName   string
	Timestamp uint64
}

// PeekType returns the discriminant of an encoded message without parsing
// the body.
func PeekType(b []byte) (MessageType, error) {
	if len(b) == 0 {
		return 0, ErrTruncated
	}
	t := MessageType(b[0])
	switch t {
	case TypeImageData, TypeProcessedData, TypeHeartbeat, TypeShutdown:
		return t, nil
	}
	return 0, ErrUnknownType
}
