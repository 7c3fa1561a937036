// Package pose builds and decomposes rigid transforms used as particle
// poses. A pose is a mat.Mat4 holding a rotation and a translation; the
// rotation is decomposed as intrinsic roll/pitch/yaw (x-y'-z'' order,
// matching Rz*Ry*Rx).
package pose

import (
	"math"

	"github.com/seqsense/pcgol/mat"
)

// FromRPY creates a transform from a translation and Euler angles.
func FromRPY(translation mat.Vec3, roll, pitch, yaw float32) mat.Mat4 {
	sr, cr := sincos32(roll)
	sp, cp := sincos32(pitch)
	sy, cy := sincos32(yaw)

	return mat.Mat4{
		cy * cp, sy * cp, -sp, 0,
		cy*sp*sr - sy*cr, sy*sp*sr + cy*cr, cp * sr, 0,
		cy*sp*cr + sy*sr, sy*sp*cr - cy*sr, cp * cr, 0,
		translation[0], translation[1], translation[2], 1,
	}
}

// Identity returns the identity transform.
func Identity() mat.Mat4 {
	return mat.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns the translation part of the transform.
func Translation(m mat.Mat4) mat.Vec3 {
	return mat.Vec3{m[12], m[13], m[14]}
}

// RPY decomposes the rotation part of the transform into Euler angles.
// At the gimbal-lock singularity (|pitch| = π/2), yaw is set to zero and
// the remaining rotation is reported as roll.
func RPY(m mat.Mat4) (roll, pitch, yaw float32) {
	// Column-major: element (row i, col j) is m[4*j+i].
	r20 := float64(m[2])
	switch {
	case r20 <= -1:
		pitch = math.Pi / 2
		roll = float32(math.Atan2(float64(m[4]), float64(m[8])))
	case r20 >= 1:
		pitch = -math.Pi / 2
		roll = float32(math.Atan2(-float64(m[4]), -float64(m[8])))
	default:
		pitch = float32(math.Asin(-r20))
		roll = float32(math.Atan2(float64(m[6]), float64(m[10])))
		yaw = float32(math.Atan2(float64(m[1]), float64(m[0])))
	}
	return
}

func sincos32(a float32) (float32, float32) {
	s, c := math.Sincos(float64(a))
	return float32(s), float32(c)
}
