package geometry

// Mat4 is a 4x4 affine transform in row-major order using the row-vector
// convention of 3MF: a point p maps to p * M, so translation lives in the
// fourth row.
//
//	[m0  m1  m2  m3 ]
//	[m4  m5  m6  m7 ]
//	[m8  m9  m10 m11]
//	[m12 m13 m14 m15]
type Mat4 [16]float64

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Affine builds a matrix from the twelve values of a 3MF transform
// attribute ("m00 m01 m02 m10 m11 m12 m20 m21 m22 m30 m31 m32").
func Affine(v [12]float64) Mat4 {
	return Mat4{
		v[0], v[1], v[2], 0,
		v[3], v[4], v[5], 0,
		v[6], v[7], v[8], 0,
		v[9], v[10], v[11], 1,
	}
}

// Translation returns a pure translation matrix.
func Translation(x, y, z float64) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float64 {
	return m[r*4+c]
}

// Mul returns m × o. With the row-vector convention, p * (m × o) applies m
// first and o second.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// TransformPoint applies the matrix to a point.
func (m Mat4) TransformPoint(p Vector3) Vector3 {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return Vector3{
		X: float32(x*m[0] + y*m[4] + z*m[8] + m[12]),
		Y: float32(x*m[1] + y*m[5] + z*m[9] + m[13]),
		Z: float32(x*m[2] + y*m[6] + z*m[10] + m[14]),
	}
}

// IsIdentity reports whether m equals the identity matrix exactly.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}
