package pipeline

import (
	"math"

	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
)

// DefaultBaseDPI is the rasterization density of a vector source rendered
// at its nominal size.
const DefaultBaseDPI = 150

// DensityFor returns the DPI at which to rasterize a vector source of the
// given full size so that s can be applied without losing resolution.
//
// The base DPI is halved for every power-of-two reduction the scale allows
// and doubled for every power of two it enlarges by. Fill mode has no
// uniform scale; the larger per-axis ratio is used.
func DensityFor(s *operation.Scale, full geometry.Dimension, sc geometry.ScaleConstraint, baseDPI float64, max int) float64 {
	if baseDPI <= 0 {
		baseDPI = DefaultBaseDPI
	}
	return baseDPI * rasterReduction(s, full, sc, max).Scale()
}

// densityReduction returns the factor by which rasterizing at DensityFor
// shrinks the source against its nominal size. The first scale is measured
// against the region that reaches it, so a leading crop raises the density.
// A negative factor is an enlargement.
func densityReduction(l *operation.List, full geometry.Dimension, max int) geometry.ReductionFactor {
	s := l.FirstScale()
	if s == nil {
		return geometry.NoReduction()
	}
	f := l.FrameBefore(s, full, geometry.NoReduction())
	return rasterReduction(s, f.Size, f.Constraint, max)
}

func rasterReduction(s *operation.Scale, size geometry.Dimension, sc geometry.ScaleConstraint, max int) geometry.ReductionFactor {
	scale, ok := s.ResultingScale(size, sc)
	if !ok {
		w, _ := s.Width()
		h, _ := s.Height()
		scale = math.Max(float64(w)/float64(size.Width), float64(h)/float64(size.Height))
	}
	if scale >= 1 {
		return geometry.ReductionFactor{Factor: -int(math.Floor(math.Log2(scale)))}
	}
	return geometry.ReductionFactorForScale(scale, max)
}
