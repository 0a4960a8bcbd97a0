package math3

import "github.com/chewxy/math32"

// Mat3 is a 3x3 matrix in row-major order.
// Layout: [m00 m01 m02]
//
//	[m10 m11 m12]
//	[m20 m21 m22]
type Mat3 [9]float32

// Identity returns an identity matrix.
func Identity() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Mul returns m * other.
func (m Mat3) Mul(other Mat3) Mat3 {
	var r Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r[row*3+col] = m[row*3]*other[col] +
				m[row*3+1]*other[3+col] +
				m[row*3+2]*other[6+col]
		}
	}
	return r
}

// MulVec3 returns m * v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// Transpose returns the transposed matrix.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Det returns the determinant. A negative determinant indicates a
// reflection, which reverses triangle winding when applied.
func (m Mat3) Det() float32 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// NearEqual reports whether m and other differ by at most eps per element.
func (m Mat3) NearEqual(other Mat3, eps float32) bool {
	for i := range m {
		if math32.Abs(m[i]-other[i]) > eps {
			return false
		}
	}
	return true
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * math32.Pi / 180
}

// RotationX returns a rotation matrix of deg degrees around the X axis.
func RotationX(deg float32) Mat3 {
	s, c := math32.Sincos(Radians(deg))
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotationY returns a rotation matrix of deg degrees around the Y axis.
func RotationY(deg float32) Mat3 {
	s, c := math32.Sincos(Radians(deg))
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotationZ returns a rotation matrix of deg degrees around the Z axis.
func RotationZ(deg float32) Mat3 {
	s, c := math32.Sincos(Radians(deg))
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// Scaling returns a scale matrix.
func Scaling(x, y, z float32) Mat3 {
	return Mat3{
		x, 0, 0,
		0, y, 0,
		0, 0, z,
	}
}
