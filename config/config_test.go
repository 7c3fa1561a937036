package config

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.NumParticles != 100 {
		t.Errorf("Expected 100 particles, got: %d", c.NumParticles)
	}
	if len(c.StartPoseVariance) != 6 {
		t.Fatalf("Expected 6 start pose variances, got: %d", len(c.StartPoseVariance))
	}
	for i, v := range c.StartPoseVariance {
		if v != 0.1 {
			t.Errorf("Expected start pose variance 0.1 at %d, got: %f", i, v)
		}
	}
	cov := c.MotionCovarianceDense()
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			expected := 0.0
			if i == j {
				expected = 0.1
			}
			if got := cov.At(i, j); got != expected {
				t.Errorf("Expected covariance %f at (%d, %d), got: %f", expected, i, j, got)
			}
		}
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(`
num_particles: 500
sparsification_resolution: 0.25
max_point_distance: 1.5
motion_covariance:
  - [0.2, 0, 0, 0, 0, 0]
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.NumParticles != 500 {
		t.Errorf("Expected 500 particles, got: %d", c.NumParticles)
	}
	if c.SparsificationResolution != 0.25 {
		t.Errorf("Expected resolution 0.25, got: %f", c.SparsificationResolution)
	}
	if c.MaxPointDistance != 1.5 {
		t.Errorf("Expected max point distance 1.5, got: %f", c.MaxPointDistance)
	}
	cov := c.MotionCovarianceDense()
	if got := cov.At(0, 0); got != 0.2 {
		t.Errorf("Expected covariance 0.2 at (0, 0), got: %f", got)
	}
	if got := cov.At(1, 1); got != 0 {
		t.Errorf("Expected covariance 0 at (1, 1) from the explicit rows, got: %f", got)
	}
	// Fields absent from the document keep their defaults.
	if c.ElevationResolution != 0.1 {
		t.Errorf("Expected default elevation resolution, got: %f", c.ElevationResolution)
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(strings.NewReader("num_particles: [")); err == nil {
		t.Error("Expected an error for malformed YAML")
	}
}
