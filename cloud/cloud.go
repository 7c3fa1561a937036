// Package cloud provides point cloud plumbing shared by the localization
// core: cloud construction, pass-through filtering and pose-transformed
// access on top of pcgol point clouds.
package cloud

import (
	"math"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// New creates an unorganized xyz point cloud from the given points.
func New(points []mat.Vec3) *pc.PointCloud {
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version: 0.7,
			Fields:  []string{"x", "y", "z"},
			Size:    []int{4, 4, 4},
			Type:    []string{"F", "F", "F"},
			Count:   []int{1, 1, 1},
			Width:   len(points),
			Height:  1,
		},
		Points: len(points),
	}
	pp.Data = make([]byte, len(points)*pp.Stride())
	if len(points) == 0 {
		return pp
	}
	it, _ := pp.Vec3Iterator()
	for _, p := range points {
		it.SetVec3(p)
		it.Incr()
	}
	return pp
}

// PassThrough returns a new cloud containing the points accepted by fn.
// Runs of accepted points are copied in one go.
func PassThrough(pp *pc.PointCloud, fn func(i int, p mat.Vec3) bool) (*pc.PointCloud, error) {
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	out := &pc.PointCloud{
		PointCloudHeader: pp.PointCloudHeader.Clone(),
		Data:             make([]byte, len(pp.Data)),
	}
	var j int
	runStart, runLen := 0, 0
	for i := 0; i < pp.Points; i++ {
		if fn(i, it.Vec3()) {
			if runLen == 0 {
				runStart = i
			}
			runLen++
		} else if runLen > 0 {
			pc.Copy(out, j, pp, runStart, runLen)
			j += runLen
			runLen = 0
		}
		it.Incr()
	}
	if runLen > 0 {
		pc.Copy(out, j, pp, runStart, runLen)
		j += runLen
	}
	out.Points = j
	out.Width = j
	out.Height = 1
	out.Data = out.Data[: j*out.Stride() : j*out.Stride()]
	return out, nil
}

// Finite returns a new cloud stripped of points with non-finite coordinates.
func Finite(pp *pc.PointCloud) (*pc.PointCloud, error) {
	return PassThrough(pp, func(_ int, p mat.Vec3) bool {
		return IsFinite(p)
	})
}

// Vec3s copies the point coordinates into a Vec3Slice.
func Vec3s(pp *pc.PointCloud) (pc.Vec3Slice, error) {
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	out := make(pc.Vec3Slice, 0, pp.Points)
	for i := 0; i < pp.Points; i++ {
		out = append(out, it.Vec3())
		it.Incr()
	}
	return out, nil
}

// FiniteVec3s copies the finite point coordinates into a Vec3Slice.
func FiniteVec3s(pp *pc.PointCloud) (pc.Vec3Slice, error) {
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	out := make(pc.Vec3Slice, 0, pp.Points)
	for i := 0; i < pp.Points; i++ {
		if p := it.Vec3(); IsFinite(p) {
			out = append(out, p)
		}
		it.Incr()
	}
	return out, nil
}

// IsFinite reports whether all three coordinates are finite.
func IsFinite(p mat.Vec3) bool {
	for i := range p {
		v := float64(p[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type transformedVec3RandomAccessor struct {
	pc.Vec3RandomAccessor
	trans mat.Mat4
}

func (a *transformedVec3RandomAccessor) Vec3At(i int) mat.Vec3 {
	return a.trans.TransformAffine(a.Vec3RandomAccessor.Vec3At(i))
}

// Transformed wraps ra so that every point is transformed by trans on
// access, without materializing the transformed cloud.
func Transformed(ra pc.Vec3RandomAccessor, trans mat.Mat4) pc.Vec3RandomAccessor {
	return &transformedVec3RandomAccessor{
		Vec3RandomAccessor: ra,
		trans:              trans,
	}
}
