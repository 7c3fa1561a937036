// Package endpoint implements the endpoint sensor model: particles are
// weighted by the distance from each observed point, transformed by the
// particle's pose, to its nearest neighbor in a reference map cloud.
package endpoint

import (
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/seqsense/pcgol/pc/filter/voxelgrid"
	"github.com/seqsense/pcgol/pc/storage"
	"github.com/seqsense/pcgol/pc/storage/kdtree"
	log "github.com/sirupsen/logrus"

	"github.com/mcl3d/localizer/cloud"
	"github.com/mcl3d/localizer/mcl"
)

const (
	// minResolution bounds the sparsification resolution from below.
	minResolution = 1.0e-9
	// DefaultResolution is the default sparsification resolution.
	DefaultResolution float32 = 0.1
	// DefaultMaxPointDistance caps the influence of a single point match.
	DefaultMaxPointDistance = 0.5
	// DefaultMinWeight is assigned to particles without usable points.
	DefaultMinWeight = -math.MaxFloat32
)

// nearestSearcher is the part of the map index used by the model.
type nearestSearcher interface {
	Nearest(p mat.Vec3, maxRange float32) storage.Neighbor
}

// Model implements mcl.SensorModel. The map index is built once at
// construction and read-shared across scoring workers without locking.
type Model struct {
	kdt              nearestSearcher
	res              float32
	maxPointDistance float64
	minWeight        float64

	warnMu   sync.Mutex
	lastWarn time.Time
}

// New builds the nearest-neighbor index over the map cloud. Map points
// with non-finite coordinates are left out of the index.
func New(mapCloud *pc.PointCloud) (*Model, error) {
	points, err := cloud.FiniteVec3s(mapCloud)
	if err != nil {
		return nil, err
	}
	return &Model{
		kdt:              kdtree.New(points),
		res:              DefaultResolution,
		maxPointDistance: DefaultMaxPointDistance,
		minWeight:        DefaultMinWeight,
	}, nil
}

// SetSparsificationResolution sets the voxel edge length used to
// downsample incoming clouds. Values below the minimum are clamped with a
// diagnostic.
func (m *Model) SetSparsificationResolution(res float32) {
	if res < minResolution {
		log.Warnf("sparsification resolution must not be less than %g", float32(minResolution))
		res = minResolution
	}
	m.res = res
}

// SetMaxPointDistance caps the matching distance a single point may
// contribute to a particle's score.
func (m *Model) SetMaxPointDistance(d float64) {
	m.maxPointDistance = d
}

// SetMinWeight sets the sentinel weight assigned to particles that have
// no usable points.
func (m *Model) SetMinWeight(w float64) {
	m.minWeight = w
}

// ComputeParticleWeights scores every particle against the given clouds,
// observed in the robot frame. The clouds are sparsified once, then the
// particles are scored in parallel over contiguous index ranges. After all
// workers join, the maximum weight is subtracted from every weight so the
// best particle ends at exactly zero and all others at or below it.
func (m *Model) ComputeParticleWeights(clouds []*pc.PointCloud, particles []mcl.Particle) {
	if len(particles) < 1 {
		return
	}

	sparse := make([]pc.Vec3Slice, 0, len(clouds))
	for _, pp := range clouds {
		s, err := m.sparsify(pp)
		if err != nil {
			log.Errorf("dropping point cloud: %v", err)
			continue
		}
		sparse = append(sparse, s)
	}

	nWorkers := runtime.NumCPU()
	chunk := (len(particles) + nWorkers - 1) / nWorkers
	var wg sync.WaitGroup
	for t := 0; t < nWorkers; t++ {
		start := t * chunk
		stop := start + chunk
		if stop > len(particles) {
			stop = len(particles)
		}
		if start >= stop {
			break
		}
		wg.Add(1)
		go func(ps []mcl.Particle) {
			defer wg.Done()
			for i := range ps {
				m.computeParticleWeight(sparse, &ps[i])
			}
		}(particles[start:stop])
	}
	wg.Wait()

	maxWeight := math.Inf(-1)
	for i := range particles {
		maxWeight = math.Max(maxWeight, particles[i].Weight)
	}
	for i := range particles {
		particles[i].Weight -= maxWeight
	}
}

// sparsify voxel-downsamples the cloud at the configured resolution,
// dropping non-finite points first.
func (m *Model) sparsify(pp *pc.PointCloud) (pc.Vec3Slice, error) {
	finite, err := cloud.Finite(pp)
	if err != nil {
		return nil, err
	}
	if finite.Points == 0 {
		return pc.Vec3Slice{}, nil
	}
	vg := voxelgrid.New(mat.Vec3{m.res, m.res, m.res})
	out, err := vg.Filter(finite)
	if err != nil {
		return nil, err
	}
	return cloud.Vec3s(out)
}

// computeParticleWeight sets the particle weight to the negated mean
// capped nearest-neighbor distance of the clouds transformed by the
// particle's pose. Particles without usable points get the minimum weight.
func (m *Model) computeParticleWeight(clouds []pc.Vec3Slice, particle *mcl.Particle) {
	dMax := m.maxPointDistance
	var dTotal float64
	var n int
	for _, c := range clouds {
		ra := cloud.Transformed(c, particle.Pose)
		for i := 0; i < c.Len(); i++ {
			p := ra.Vec3At(i)
			if !cloud.IsFinite(p) {
				continue
			}
			d := dMax
			if nb := m.kdt.Nearest(p, float32(dMax)); nb.ID >= 0 {
				d = math.Min(dMax, math.Sqrt(float64(nb.DistSq)))
			}
			dTotal += d
			n++
		}
	}
	if n == 0 {
		m.warnThrottled("cannot compute a particle weight without usable points")
		particle.Weight = m.minWeight
		return
	}
	particle.Weight = -dTotal / float64(n)
}

func (m *Model) warnThrottled(msg string) {
	m.warnMu.Lock()
	defer m.warnMu.Unlock()
	if time.Since(m.lastWarn) < time.Second {
		return
	}
	m.lastWarn = time.Now()
	log.Warn(msg)
}
