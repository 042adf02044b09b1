package rigid

import "math"

// EulerZYX decomposes the rotation block into Tait-Bryan angles (radians)
// using the ZYX convention. Diagnostics only: resolution logic never consumes
// these angles, but they make mis-encoded registration objects obvious when a
// human inspects them.
func EulerZYX(m Matrix) (rx, ry, rz float64) {
	r00, r10, r20 := m[0], m[4], m[8]
	r21, r22 := m[9], m[10]

	// Clamp against drift just outside [-1, 1].
	s := -r20
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	ry = math.Asin(s)

	if math.Abs(math.Cos(ry)) > 1e-9 {
		rx = math.Atan2(r21, r22)
		rz = math.Atan2(r10, r00)
	} else {
		// Gimbal lock: fold everything into rx.
		rx = math.Atan2(-m[6], m[5])
		rz = 0
	}

	return rx, ry, rz
}

// EulerZYXDegrees is EulerZYX converted to degrees.
func EulerZYXDegrees(m Matrix) (rx, ry, rz float64) {
	x, y, z := EulerZYX(m)
	return x * 180 / math.Pi, y * 180 / math.Pi, z * 180 / math.Pi
}
