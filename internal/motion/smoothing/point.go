package smoothing

import "gonum.org/v1/gonum/spatial/r3"

// PointFilter filters a 3D point with one independent OneEuroFilter per axis.
// It is a value type so a fixed array of them can be owned by the extractor
// without aliasing.
type PointFilter struct {
	x, y, z OneEuroFilter
}

// NewPointFilter creates a 3D filter whose three axes share cfg.
func NewPointFilter(cfg Config) PointFilter {
	return PointFilter{
		x: OneEuroFilter{cfg: cfg},
		y: OneEuroFilter{cfg: cfg},
		z: OneEuroFilter{cfg: cfg},
	}
}

// Filter smooths all three axes of p at timestamp.
func (pf *PointFilter) Filter(p r3.Vec, timestamp float64) r3.Vec {
	return r3.Vec{
		X: pf.x.Filter(p.X, timestamp),
		Y: pf.y.Filter(p.Y, timestamp),
		Z: pf.z.Filter(p.Z, timestamp),
	}
}

// Reset clears the state of all three axes.
func (pf *PointFilter) Reset() {
	pf.x.Reset()
	pf.y.Reset()
	pf.z.Reset()
}
