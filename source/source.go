// Package source defines the image-source collaborator boundary. How frames
// come to exist (directory scans, camera capture, synthetic data) is outside
// the pipeline; the source stage only consumes the Source interface.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/BrianCerberus/imageflow/wire"
)

// ErrExhausted reports a source with no frames at all. A source that loops
// never returns it after yielding its first frame.
var ErrExhausted = errors.New("source: no frames available")

// Source yields one frame per call. Implementations stamp the capture time;
// callers own the returned value.
type Source interface {
	Next(ctx context.Context) (*wire.ImageData, error)
}

// Slice cycles over a fixed set of frames forever, the way the reference
// deployment loops over a survey directory. Each call re-stamps the capture
// time so downstream sees monotonically increasing timestamps.
type Slice struct {
	frames []*wire.ImageData
	index  int
	now    func() time.Time
}

// NewSlice creates a Slice over the given frames. DataSize is normalized to
// the pixel payload length on every yielded frame.
func NewSlice(frames ...*wire.ImageData) *Slice {
	return &Slice{frames: frames, now: time.Now}
}

// Next returns a copy of the next frame in rotation.
func (s *Slice) Next(ctx context.Context) (*wire.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, ErrExhausted
	}

	frame := *s.frames[s.index]
	s.index = (s.index + 1) % len(s.frames)

	frame.Timestamp = uint64(s.now().UnixNano())
	frame.DataSize = uint32(len(frame.Pixels))
	return &frame, nil
}
