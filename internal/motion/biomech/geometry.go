package biomech

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Angle3D returns the angle in degrees at vertex b formed by the segments
// b→a and b→c. A zero-length segment yields 0 rather than NaN.
func Angle3D(a, b, c r3.Vec) float64 {
	v1 := r3.Sub(a, b)
	v2 := r3.Sub(c, b)

	n1 := r3.Norm(v1)
	n2 := r3.Norm(v2)
	if n1 == 0 || n2 == 0 {
		return 0
	}

	cos := r3.Dot(v1, v2) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// LineRotation returns the rotation of the line from left to right about the
// vertical axis, atan2(dz, dx), in degrees.
func LineRotation(left, right r3.Vec) float64 {
	d := r3.Sub(right, left)
	return math.Atan2(d.Z, d.X) * 180 / math.Pi
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}
