// Package rigid implements the small amount of homogeneous 4x4 matrix algebra
// needed to manipulate frame-of-reference registrations: composition,
// closed-form rigid inversion, and diagnostic decompositions. Matrices are
// row-major with the last row fixed at [0 0 0 1], in millimeters, applied as
// P_target = M * P_source.
package rigid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RigidTolerance bounds how far the rotation block may drift from orthonormal
// before a matrix is rejected as non-rigid.
const RigidTolerance = 1e-4

// Matrix is a row-major homogeneous 4x4 transform.
type Matrix [16]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// FromSlice builds a Matrix from 16 row-major values.
func FromSlice(v []float64) (Matrix, error) {
	var m Matrix
	if len(v) != 16 {
		return m, fmt.Errorf("rigid: expected 16 matrix values, got %d", len(v))
	}
	copy(m[:], v)
	return m, nil
}

func (m Matrix) dense() *mat.Dense {
	v := make([]float64, 16)
	copy(v, m[:])
	return mat.NewDense(4, 4, v)
}

func fromDense(d *mat.Dense) Matrix {
	var m Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i*4+j] = d.At(i, j)
		}
	}
	return m
}

// Compose returns the transform equivalent to applying b first, then a.
func Compose(a, b Matrix) Matrix {
	var out mat.Dense
	out.Mul(a.dense(), b.dense())
	return fromDense(&out)
}

// Invert computes the closed-form inverse of a rigid transform: the rotation
// block is transposed and the translation becomes -R^T * t. This avoids
// general 4x4 inversion, which is less stable for this structure.
func Invert(m Matrix) Matrix {
	out := Identity()

	// R^T
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*4+j] = m[j*4+i]
		}
	}

	// -R^T * t
	tx, ty, tz := m[3], m[7], m[11]
	out[3] = -(out[0]*tx + out[1]*ty + out[2]*tz)
	out[7] = -(out[4]*tx + out[5]*ty + out[6]*tz)
	out[11] = -(out[8]*tx + out[9]*ty + out[10]*tz)

	return out
}

// TransposeVariant swaps the rotation block with its transpose while leaving
// the translation untouched. This is only meaningful when probing a known
// class of mis-encoded registration objects; resolution logic never applies
// it on its own.
func TransposeVariant(m Matrix) Matrix {
	out := m
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*4+j] = m[j*4+i]
		}
	}
	return out
}

// Translation returns the translation column (in mm).
func (m Matrix) Translation() [3]float64 {
	return [3]float64{m[3], m[7], m[11]}
}

// Apply maps a point from the source frame into the target frame.
func (m Matrix) Apply(p [3]float64) [3]float64 {
	return [3]float64{
		m[0]*p[0] + m[1]*p[1] + m[2]*p[2] + m[3],
		m[4]*p[0] + m[5]*p[1] + m[6]*p[2] + m[7],
		m[8]*p[0] + m[9]*p[1] + m[10]*p[2] + m[11],
	}
}

// Distance returns the Frobenius norm of a-b.
func Distance(a, b Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a.dense(), b.dense())
	return mat.Norm(&diff, 2)
}

// IsIdentity reports whether m is the identity within tol (Frobenius norm).
func IsIdentity(m Matrix, tol float64) bool {
	return Distance(m, Identity()) <= tol
}

// HasRotation reports whether the rotation block differs from identity within
// tol. Degenerate "self to self" registration objects carry pure-identity
// rotation and lose scoring tie-breaks to candidates that do not.
func HasRotation(m Matrix, tol float64) bool {
	r := m
	r[3], r[7], r[11] = 0, 0, 0
	return !IsIdentity(r, tol)
}

// CheckRigid verifies that the last row is [0 0 0 1] and that the rotation
// block is orthonormal within RigidTolerance (R * R^T ~ I, det(R) ~ +1).
func CheckRigid(m Matrix) error {
	lastRow := [4]float64{m[12], m[13], m[14], m[15]}
	want := [4]float64{0, 0, 0, 1}
	for i := range lastRow {
		if math.Abs(lastRow[i]-want[i]) > RigidTolerance {
			return fmt.Errorf("rigid: last row %v is not [0 0 0 1]", lastRow)
		}
	}

	r := mat.NewDense(3, 3, []float64{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	})

	var rrt mat.Dense
	rrt.Mul(r, r.T())

	eye := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	var diff mat.Dense
	diff.Sub(&rrt, eye)
	if n := mat.Norm(&diff, 2); n > RigidTolerance {
		return fmt.Errorf("rigid: rotation block not orthonormal (deviation %g)", n)
	}

	if det := mat.Det(r); math.Abs(det-1) > RigidTolerance {
		return fmt.Errorf("rigid: rotation determinant %g, expected +1 (scale, shear, or reflection present)", det)
	}

	return nil
}
