// Package elevation rasterizes 3D point clouds into 2D height maps and
// compares such maps against each other.
package elevation

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultResolution is the tile edge length used when none is given.
	DefaultResolution = 0.1
	// minResolution is the lowest admissible tile edge length.
	minResolution = 1.0e-3
)

// Map is a 2D grid of tile heights. Each tile stores the maximum z value
// of the points that fell into it, or NaN if no point did. A Map is
// immutable after construction.
type Map struct {
	tiles      [][]float64
	resolution float64
	xMin, yMin float64
}

// New rasterizes the point cloud into an elevation map with the given
// resolution. Points with non-finite coordinates are ignored. The
// resolution is clamped to a safe minimum. A cloud without finite points
// yields a 1x1 map with an undefined tile.
func New(pp *pc.PointCloud, resolution float64) (*Map, error) {
	m := &Map{
		resolution: math.Max(minResolution, resolution),
	}

	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}

	xMin, yMin := math.MaxFloat64, math.MaxFloat64
	xMax, yMax := -math.MaxFloat64, -math.MaxFloat64
	var finite bool
	for i := 0; i < pp.Points; i++ {
		p := it.Vec3()
		it.Incr()
		x, y := float64(p[0]), float64(p[1])
		if !isFinite(x) || !isFinite(y) {
			continue
		}
		finite = true
		xMin = math.Min(xMin, x)
		yMin = math.Min(yMin, y)
		xMax = math.Max(xMax, x)
		yMax = math.Max(yMax, y)
	}
	if !finite {
		xMin, yMin, xMax, yMax = 0, 0, 0, 0
	}

	// Snap the minimum corner down to a multiple of the resolution.
	m.xMin = math.Floor(xMin/m.resolution) * m.resolution
	m.yMin = math.Floor(yMin/m.resolution) * m.resolution

	xSize := int(math.Ceil((xMax - m.xMin) / m.resolution))
	ySize := int(math.Ceil((yMax - m.yMin) / m.resolution))
	if xSize < 1 {
		xSize = 1
	}
	if ySize < 1 {
		ySize = 1
	}

	m.tiles = make([][]float64, xSize)
	for ix := range m.tiles {
		m.tiles[ix] = make([]float64, ySize)
		for iy := range m.tiles[ix] {
			m.tiles[ix][iy] = math.NaN()
		}
	}

	it, err = pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	for i := 0; i < pp.Points; i++ {
		p := it.Vec3()
		it.Incr()
		z := float64(p[2])
		if !isFinite(z) {
			continue
		}
		ix, iy, ok := m.tile(float64(p[0]), float64(p[1]))
		if !ok {
			continue
		}
		if cur := m.tiles[ix][iy]; math.IsNaN(cur) || z > cur {
			m.tiles[ix][iy] = z
		}
	}
	return m, nil
}

// ElevationOf returns the height of the tile containing the point, or NaN
// if the point lies outside the map or the tile holds no data.
func (m *Map) ElevationOf(p mat.Vec3) float64 {
	return m.Elevation(float64(p[0]), float64(p[1]))
}

// Elevation returns the height of the tile containing the coordinates, or
// NaN if the coordinates lie outside the map or the tile holds no data.
func (m *Map) Elevation(x, y float64) float64 {
	ix, iy, ok := m.tile(x, y)
	if !ok {
		return math.NaN()
	}
	return m.tiles[ix][iy]
}

// ElevationAt returns the height of the tile with the given index, or NaN
// if the index is out of bounds or the tile holds no data.
func (m *Map) ElevationAt(ix, iy int) float64 {
	if !m.check(ix, iy) {
		return math.NaN()
	}
	return m.tiles[ix][iy]
}

// Diff computes the mean height distance between the two maps over the
// tiles of m, capping each tile's contribution at dMax. Tiles undefined in
// either map are skipped. If no tile is defined in both maps, dMax is
// returned. Both maps must have the same resolution for the result to be
// meaningful.
func (m *Map) Diff(other *Map, dMax float64) float64 {
	if m.resolution != other.resolution {
		log.Error("elevation maps must have the same resolution to be comparable")
	}

	var dTotal float64
	var n int
	for ix := range m.tiles {
		for iy := range m.tiles[ix] {
			xCenter := m.xMin + (float64(ix)+0.5)*m.resolution
			yCenter := m.yMin + (float64(iy)+0.5)*m.resolution
			d := m.tiles[ix][iy] - other.Elevation(xCenter, yCenter)
			if !isFinite(d) {
				continue
			}
			dTotal += math.Min(math.Abs(d), dMax)
			n++
		}
	}
	if n < 1 {
		return dMax
	}
	return dTotal / float64(n)
}

// Resolution returns the tile edge length.
func (m *Map) Resolution() float64 {
	return m.resolution
}

// Size returns the number of tiles per axis.
func (m *Map) Size() (int, int) {
	if len(m.tiles) == 0 {
		return 0, 0
	}
	return len(m.tiles), len(m.tiles[0])
}

// Save writes the map as a whitespace-delimited table, one line per
// x-index with the heights of all y-indices in order. Undefined tiles are
// written as NaN.
func (m *Map) Save(w io.Writer) error {
	for ix := range m.tiles {
		for iy := range m.tiles[ix] {
			if _, err := io.WriteString(w,
				strconv.FormatFloat(m.tiles[ix][iy], 'g', -1, 64)+" "); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SaveFile writes the map to the named file. An empty name derives a
// timestamped one in the working directory.
func (m *Map) SaveFile(filename string) error {
	if filename == "" {
		filename = fmt.Sprintf("%d.csv", time.Now().UnixNano())
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *Map) check(ix, iy int) bool {
	return 0 <= ix && ix < len(m.tiles) &&
		0 <= iy && iy < len(m.tiles[0])
}

func (m *Map) tile(x, y float64) (int, int, bool) {
	if !isFinite(x) || !isFinite(y) {
		return 0, 0, false
	}
	ix := int(math.Floor((x - m.xMin) / m.resolution))
	iy := int(math.Floor((y - m.yMin) / m.resolution))
	if !m.check(ix, iy) {
		return 0, 0, false
	}
	return ix, iy, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
