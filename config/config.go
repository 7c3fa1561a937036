// Package config loads the tunables of the localization core from YAML.
package config

import (
	"io"
	"os"

	gmat "gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/mcl3d/localizer/elevation"
	"github.com/mcl3d/localizer/mcl/endpoint"
)

// Config collects the configuration surface of the localization core. All
// values must be set before the models are used; there is no dynamic
// reconfiguration mid-computation.
type Config struct {
	NumParticles             int         `yaml:"num_particles"`
	StartPoseVariance        []float64   `yaml:"start_pose_variance"`
	MotionCovariance         [][]float64 `yaml:"motion_covariance"`
	SparsificationResolution float32     `yaml:"sparsification_resolution"`
	ElevationResolution      float64     `yaml:"elevation_resolution"`
	MaxPointDistance         float64     `yaml:"max_point_distance"`
	MinWeight                float64     `yaml:"min_weight"`
}

// Default returns the configuration matching the model defaults.
func Default() *Config {
	sv := make([]float64, 6)
	cov := make([][]float64, 6)
	for i := range cov {
		sv[i] = 0.1
		cov[i] = make([]float64, 6)
		cov[i][i] = 0.1
	}
	return &Config{
		NumParticles:             100,
		StartPoseVariance:        sv,
		MotionCovariance:         cov,
		SparsificationResolution: endpoint.DefaultResolution,
		ElevationResolution:      elevation.DefaultResolution,
		MaxPointDistance:         endpoint.DefaultMaxPointDistance,
		MinWeight:                endpoint.DefaultMinWeight,
	}
}

// Load reads a YAML configuration. Absent fields keep their defaults.
func Load(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a YAML configuration from the named file.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// MotionCovarianceDense converts the covariance rows to a 6x6 matrix.
// Missing rows or columns stay zero.
func (c *Config) MotionCovarianceDense() *gmat.Dense {
	m := gmat.NewDense(6, 6, nil)
	for i, row := range c.MotionCovariance {
		if i >= 6 {
			break
		}
		for j, v := range row {
			if j >= 6 {
				break
			}
			m.Set(i, j, v)
		}
	}
	return m
}
