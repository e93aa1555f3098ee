// Package extract defines the feature-extractor collaborator boundary. The
// detection algorithm itself is external; the relay stage only ever sees the
// Extractor interface and a success/failure value. Detector libraries that
// panic on bad image data are contained by Safe so nothing unwinds into the
// stage loop.
package extract

import (
	"fmt"

	"github.com/BrianCerberus/imageflow/wire"
)

// Extractor turns one frame into keypoints and a flat descriptor vector.
// The descriptor layout is up to the implementation; the pipeline carries
// it opaquely. Implementations must not retain or mutate the frame.
type Extractor interface {
	Extract(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error)

// Extract calls f.
func (f Func) Extract(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error) {
	return f(frame)
}

// Safe wraps an Extractor so a panicking implementation surfaces as an
// ordinary error instead of crashing the stage.
func Safe(e Extractor) Extractor {
	return &safeExtractor{inner: e}
}

type safeExtractor struct {
	inner Extractor
}

func (s *safeExtractor) Extract(frame *wire.ImageData) (kps []wire.KeyPoint, descs []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			kps, descs = nil, nil
			err = fmt.Errorf("extract: detector panicked: %v", r)
		}
	}()
	return s.inner.Extract(frame)
}
