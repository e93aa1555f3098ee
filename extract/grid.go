package extract

import (
	"fmt"

	"github.com/BrianCerberus/imageflow/wire"
)

// DefaultGridStep is the cell size used by NewGrid when the step is not set.
const DefaultGridStep = 16

// descriptorLen is the number of values emitted per keypoint: a ring of
// eight neighborhood samples around the detected pixel.
const descriptorLen = 8

// Grid is a deterministic brightness detector. It divides the frame into
// step-sized cells, finds the brightest pixel of each cell, and keeps those
// brighter than the frame average. It is no substitute for a real corner
// detector but gives the pipeline stable, dimension-aware features without
// a native dependency.
type Grid struct {
	step int
}

// NewGrid creates a Grid detector. A step below 2 falls back to
// DefaultGridStep.
func NewGrid(step int) *Grid {
	if step < 2 {
		step = DefaultGridStep
	}
	return &Grid{step: step}
}

// Extract scans the frame and returns one keypoint per bright cell, with an
// eight-sample neighborhood descriptor each.
func (g *Grid) Extract(frame *wire.ImageData) ([]wire.KeyPoint, []float32, error) {
	if frame == nil {
		return nil, nil, fmt.Errorf("extract: nil frame")
	}
	w, h, c := int(frame.Width), int(frame.Height), int(frame.Channels)
	if w <= 0 || h <= 0 || c <= 0 {
		return nil, nil, fmt.Errorf("extract: invalid dimensions %dx%dx%d", w, h, c)
	}
	if w*h*c != len(frame.Pixels) {
		return nil, nil, fmt.Errorf("extract: %dx%dx%d frame carries %d bytes, want %d",
			w, h, c, len(frame.Pixels), w*h*c)
	}

	mean := meanIntensity(frame.Pixels)

	var kps []wire.KeyPoint
	var descs []float32
	for cy := 0; cy < h; cy += g.step {
		for cx := 0; cx < w; cx += g.step {
			x, y, peak := brightestInCell(frame, cx, cy, g.step)
			if peak <= mean {
				continue
			}
			kps = append(kps, wire.KeyPoint{
				X:        float32(x),
				Y:        float32(y),
				Size:     float32(g.step),
				Angle:    0,
				Response: (peak - mean) / 255,
				Octave:   0,
			})
			descs = appendNeighborhood(descs, frame, x, y)
		}
	}
	return kps, descs, nil
}

func meanIntensity(pixels []byte) float32 {
	var sum uint64
	for _, p := range pixels {
		sum += uint64(p)
	}
	return float32(sum) / float32(len(pixels))
}

// brightestInCell returns the coordinates and intensity of the brightest
// pixel inside the step-sized cell anchored at (cx, cy).
func brightestInCell(frame *wire.ImageData, cx, cy, step int) (int, int, float32) {
	w, h := int(frame.Width), int(frame.Height)
	bx, by := cx, cy
	best := float32(-1)
	for y := cy; y < cy+step && y < h; y++ {
		for x := cx; x < cx+step && x < w; x++ {
			if v := intensityAt(frame, x, y); v > best {
				best, bx, by = v, x, y
			}
		}
	}
	return bx, by, best
}

// intensityAt averages the channels of the pixel at (x, y). Out-of-bounds
// coordinates read as zero.
func intensityAt(frame *wire.ImageData, x, y int) float32 {
	w, h, c := int(frame.Width), int(frame.Height), int(frame.Channels)
	if x < 0 || x >= w || y < 0 || y >= h {
		return 0
	}
	off := (y*w + x) * c
	var sum int
	for i := 0; i < c; i++ {
		sum += int(frame.Pixels[off+i])
	}
	return float32(sum) / float32(c)
}

// appendNeighborhood appends the eight ring samples around (x, y),
// normalized to [0, 1].
func appendNeighborhood(descs []float32, frame *wire.ImageData, x, y int) []float32 {
	for _, d := range [descriptorLen][2]int{
		{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
	} {
		descs = append(descs, intensityAt(frame, x+d[0], y+d[1])/255)
	}
	return descs
}
