// Package motion6d provides a simplified 6D motion model: the six degrees
// of freedom of each particle are perturbed by independent Gaussian noise
// whose magnitude scales with the motion increment.
package motion6d

import (
	"math"

	"github.com/seqsense/pcgol/mat"
	gmat "gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mcl3d/localizer/mcl"
	"github.com/mcl3d/localizer/pose"
)

// Model implements mcl.MotionModel. The zero value is not usable; use New.
type Model struct {
	covariance    *gmat.Dense
	startVariance []float64
}

// New creates a model with the default motion covariance (0.1 on the
// diagonal) and start pose variance (0.1 per degree of freedom).
func New() *Model {
	cov := gmat.NewDense(6, 6, nil)
	sv := make([]float64, 6)
	for i := 0; i < 6; i++ {
		cov.Set(i, i, 0.1)
		sv[i] = 0.1
	}
	return &Model{
		covariance:    cov,
		startVariance: sv,
	}
}

// SetMotionCovariance stores the 6x6 motion covariance. The values are
// stored as-is; the caller must not supply negative variances.
func (m *Model) SetMotionCovariance(covariance *gmat.Dense) {
	m.covariance = covariance
}

// SetStartPoseVariance stores the per-axis start pose variance, ordered
// x, y, z, roll, pitch, yaw. The values are stored as-is.
func (m *Model) SetStartPoseVariance(variance []float64) {
	m.startVariance = variance
}

// Init scatters all particles around the start pose according to the
// start pose variance.
func (m *Model) Init(startPose mat.Mat4, particles []mcl.Particle) {
	origin := pose.Translation(startPose)
	roll, pitch, yaw := pose.RPY(startPose)

	randomOrigin := newGaussVec(
		[3]float64{float64(origin[0]), float64(origin[1]), float64(origin[2])},
		[3]float64{m.startVariance[0], m.startVariance[1], m.startVariance[2]},
	)
	randomRotation := newGaussVec(
		[3]float64{float64(roll), float64(pitch), float64(yaw)},
		[3]float64{m.startVariance[3], m.startVariance[4], m.startVariance[5]},
	)
	for i := range particles {
		o := randomOrigin.sample()
		r := randomRotation.sample()
		particles[i].Pose = pose.FromRPY(
			mat.Vec3{float32(o[0]), float32(o[1]), float32(o[2])},
			float32(r[0]), float32(r[1]), float32(r[2]),
		)
	}
}

// MoveParticles applies the movement, expressed in the robot frame, to all
// particles. The noise variance per degree of freedom is the motion
// covariance applied to the increment, so a zero movement adds no drift.
// Each particle's pose is right-multiplied by its own noisy increment.
func (m *Model) MoveParticles(movement mat.Mat4, particles []mcl.Particle) {
	translation := pose.Translation(movement)
	roll, pitch, yaw := pose.RPY(movement)

	increment := gmat.NewVecDense(6, []float64{
		float64(translation[0]), float64(translation[1]), float64(translation[2]),
		float64(roll), float64(pitch), float64(yaw),
	})
	var variance gmat.VecDense
	variance.MulVec(m.covariance, increment)

	randomTranslation := newGaussVec(
		[3]float64{float64(translation[0]), float64(translation[1]), float64(translation[2])},
		[3]float64{variance.AtVec(0), variance.AtVec(1), variance.AtVec(2)},
	)
	randomRotation := newGaussVec(
		[3]float64{float64(roll), float64(pitch), float64(yaw)},
		[3]float64{variance.AtVec(3), variance.AtVec(4), variance.AtVec(5)},
	)
	for i := range particles {
		tr := randomTranslation.sample()
		rot := randomRotation.sample()
		noisy := pose.FromRPY(
			mat.Vec3{float32(tr[0]), float32(tr[1]), float32(tr[2])},
			float32(rot[0]), float32(rot[1]), float32(rot[2]),
		)
		particles[i].Pose = particles[i].Pose.Mul(noisy)
	}
}

// gaussVec draws independent per-axis Gaussian samples. The variance
// magnitude is used, so a sign flip from a negative motion increment does
// not poison the draw.
type gaussVec [3]distuv.Normal

func newGaussVec(mean, variance [3]float64) gaussVec {
	var g gaussVec
	for i := range g {
		g[i] = distuv.Normal{
			Mu:    mean[i],
			Sigma: math.Sqrt(math.Abs(variance[i])),
		}
	}
	return g
}

func (g gaussVec) sample() [3]float64 {
	return [3]float64{g[0].Rand(), g[1].Rand(), g[2].Rand()}
}
