package geometry

import (
	"fmt"
	"math"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
)

// ReductionFactor is the power-of-two shrink a reader applied while
// decoding. Factor 0 means full resolution.
type ReductionFactor struct {
	Factor int `json:"factor"`
}

// NoReduction returns factor 0.
func NoReduction() ReductionFactor {
	return ReductionFactor{}
}

// NewReductionFactor validates f and returns the corresponding factor.
func NewReductionFactor(f int) (ReductionFactor, error) {
	const op = "reduction_factor.new"
	if f < 0 {
		return ReductionFactor{}, domain.Invalid(op, "Factor must be greater than or equal to zero")
	}
	return ReductionFactor{Factor: f}, nil
}

// ReductionFactorForScale returns the largest factor in [0, max] whose
// scale is still at least scale, so decoding at that factor never yields
// fewer pixels than the target.
func ReductionFactorForScale(scale float64, max int) ReductionFactor {
	f := 0
	next := 0.5
	for scale <= next && f < max {
		next /= 2
		f++
	}
	return ReductionFactor{Factor: f}
}

// Scale returns 1/2^f.
func (r ReductionFactor) Scale() float64 {
	return math.Pow(2, -float64(r.Factor))
}

// Apply returns size as a reader decoding at this factor delivers it.
func (r ReductionFactor) Apply(size Dimension) Dimension {
	if r.Factor == 0 {
		return size
	}
	return size.Scaled(r.Scale())
}

func (r ReductionFactor) String() string {
	return fmt.Sprintf("%d", r.Factor)
}
