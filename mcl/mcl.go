// Package mcl implements the particle filter core of a Monte Carlo
// localization engine. The filter owns a fixed-size population of weighted
// pose hypotheses and the motion model advancing them; sensor weighting
// and resampling are driven by the caller through the population accessors.
package mcl

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/mcl3d/localizer/pose"
)

// Particle is one pose hypothesis. Weight is on a relative log scale and
// is not normalized to sum to one over the population.
type Particle struct {
	Pose   mat.Mat4
	Weight float64
}

// MotionModel advances particle poses under noisy odometry.
type MotionModel interface {
	// Init scatters the particles around the start pose according to the
	// model's start pose variance. Weights are left untouched.
	Init(startPose mat.Mat4, particles []Particle)
	// MoveParticles applies the movement, expressed in the robot frame,
	// to every particle with an independent noise realization.
	MoveParticles(movement mat.Mat4, particles []Particle)
}

// SensorModel scores particles against point clouds observed in the robot
// frame, writing relative log weights into the population.
type SensorModel interface {
	ComputeParticleWeights(clouds []*pc.PointCloud, particles []Particle)
}

// Resampler converts a weighted population into a new population of the
// same size. The resampling policy is external to this package.
type Resampler interface {
	Resample(particles []Particle) []Particle
}

// Filter owns the particle population and the motion model.
type Filter struct {
	motion    MotionModel
	particles []Particle
}

// New creates a filter using the given motion model. Call Init before any
// other operation.
func New(motion MotionModel) *Filter {
	return &Filter{motion: motion}
}

// Init allocates n particles at startPose and delegates to the motion
// model to scatter them. The population size stays fixed until the next
// Init or SetParticles.
func (f *Filter) Init(n int, startPose mat.Mat4) {
	f.particles = make([]Particle, n)
	for i := range f.particles {
		f.particles[i].Pose = startPose
	}
	f.motion.Init(startPose, f.particles)
}

// UpdateMotion moves all particles by the given motion increment through
// the motion model.
func (f *Filter) UpdateMotion(movement mat.Mat4) {
	f.motion.MoveParticles(movement, f.particles)
}

// Particles returns the owned population. Sensor models and resamplers
// operate on it directly.
func (f *Filter) Particles() []Particle {
	return f.particles
}

// SetParticles replaces the population, normally with the output of a
// Resampler.
func (f *Filter) SetParticles(particles []Particle) {
	f.particles = particles
}

// MeanPose returns the arithmetic mean of the particle origins. Weights
// and orientations are not taken into account. Returns the zero vector
// for an empty population.
func (f *Filter) MeanPose() mat.Vec3 {
	var mean mat.Vec3
	if len(f.particles) == 0 {
		return mean
	}
	for i := range f.particles {
		mean = mean.Add(pose.Translation(f.particles[i].Pose))
	}
	return mean.Mul(1 / float32(len(f.particles)))
}
