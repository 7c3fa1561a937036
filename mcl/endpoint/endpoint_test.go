package endpoint

import (
	"math"
	"testing"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/mcl3d/localizer/cloud"
	"github.com/mcl3d/localizer/mcl"
	"github.com/mcl3d/localizer/pose"
)

var nan = float32(math.NaN())

func mapPoints() []mat.Vec3 {
	var points []mat.Vec3
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			points = append(points, mat.Vec3{float32(x), float32(y), 0})
		}
	}
	return points
}

func TestComputeParticleWeights_Normalization(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	scan := cloud.New(mapPoints())

	particles := []mcl.Particle{
		{Pose: pose.Identity()},
		{Pose: mat.Translate(0.3, 0, 0)},
		{Pose: mat.Translate(0, 0.4, 0)},
	}
	m.ComputeParticleWeights([]*pc.PointCloud{scan}, particles)

	var zeros int
	for i, p := range particles {
		if math.IsNaN(p.Weight) || p.Weight > 0 {
			t.Fatalf("Particle %d: expected weight <= 0, got: %f", i, p.Weight)
		}
		if p.Weight == 0 {
			zeros++
		}
	}
	if zeros < 1 {
		t.Error("Expected at least one particle at weight 0")
	}
	if particles[0].Weight != 0 {
		t.Errorf("Expected the aligned particle at weight 0, got: %f", particles[0].Weight)
	}
}

func TestComputeParticleWeight_Aligned(t *testing.T) {
	const eps = 1e-6
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	scan, err := m.sparsify(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}

	p := mcl.Particle{Pose: pose.Identity()}
	m.computeParticleWeight([]pc.Vec3Slice{scan}, &p)
	if math.Abs(p.Weight) > eps {
		t.Errorf("Expected near-zero weight for the aligned particle, got: %g", p.Weight)
	}
}

func TestComputeParticleWeights_EmptyPopulation(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	// Must return without touching anything.
	m.ComputeParticleWeights([]*pc.PointCloud{cloud.New(mapPoints())}, nil)
}

func TestComputeParticleWeights_NoUsablePoints(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}

	p := mcl.Particle{Pose: pose.Identity()}
	m.computeParticleWeight(nil, &p)
	if p.Weight != DefaultMinWeight {
		t.Errorf("Expected the minimum weight sentinel, got: %g", p.Weight)
	}

	m.SetMinWeight(-1e3)
	m.computeParticleWeight([]pc.Vec3Slice{{}}, &p)
	if p.Weight != -1e3 {
		t.Errorf("Expected the configured sentinel, got: %g", p.Weight)
	}
}

func TestComputeParticleWeights_NonFiniteScan(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	scan := cloud.New([]mat.Vec3{
		{nan, nan, nan},
		{0, 0, 0},
	})

	particles := []mcl.Particle{{Pose: pose.Identity()}}
	m.ComputeParticleWeights([]*pc.PointCloud{scan}, particles)
	if particles[0].Weight != 0 {
		t.Errorf("Expected weight 0 after normalization, got: %f", particles[0].Weight)
	}
}

func TestComputeParticleWeights_ManyParticles(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	scan := cloud.New(mapPoints())

	particles := make([]mcl.Particle, 100)
	for i := range particles {
		particles[i].Pose = mat.Translate(float32(i)*0.01, 0, 0)
	}
	m.ComputeParticleWeights([]*pc.PointCloud{scan}, particles)

	var zeros int
	for i, p := range particles {
		if math.IsNaN(p.Weight) || p.Weight > 0 {
			t.Fatalf("Particle %d: expected finite weight <= 0, got: %f", i, p.Weight)
		}
		if p.Weight == 0 {
			zeros++
		}
	}
	if zeros < 1 {
		t.Error("Expected at least one particle at weight 0")
	}
}

func TestSparsify_Idempotent(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	m.SetSparsificationResolution(0.5)

	// Tight clusters spaced well apart: sparsification collapses each
	// cluster to one representative and cannot merge representatives on a
	// second pass.
	var points []mat.Vec3
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			x, y := float32(i), float32(j)
			points = append(points,
				mat.Vec3{x, y, 0},
				mat.Vec3{x + 0.05, y + 0.03, 0},
				mat.Vec3{x - 0.04, y - 0.02, 0},
			)
		}
	}
	s1, err := m.sparsify(cloud.New(points))
	if err != nil {
		t.Fatal(err)
	}
	if len(s1) >= len(points) {
		t.Fatalf("Expected sparsification to reduce %d points, got: %d", len(points), len(s1))
	}
	s2, err := m.sparsify(cloud.New(s1))
	if err != nil {
		t.Fatal(err)
	}
	if len(s2) != len(s1) {
		t.Errorf("Expected no further reduction, got %d -> %d points", len(s1), len(s2))
	}
}

func TestSetSparsificationResolution_Clamped(t *testing.T) {
	m, err := New(cloud.New(mapPoints()))
	if err != nil {
		t.Fatal(err)
	}
	m.SetSparsificationResolution(1e-12)
	if m.res != minResolution {
		t.Errorf("Expected resolution clamped to %g, got: %g", float32(minResolution), m.res)
	}
}
