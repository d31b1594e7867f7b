package geometry

import (
	"fmt"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
)

// ScaleConstraint is a rational resolution ceiling exposed to the client.
// The zero value behaves as the identity constraint.
type ScaleConstraint struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// IdentityConstraint returns 1:1.
func IdentityConstraint() ScaleConstraint {
	return ScaleConstraint{Numerator: 1, Denominator: 1}
}

// NewScaleConstraint validates and reduces n/d.
func NewScaleConstraint(n, d int) (ScaleConstraint, error) {
	const op = "scale_constraint.new"
	switch {
	case d <= 0:
		return ScaleConstraint{}, domain.Invalid(op, "Denominator must be a positive integer")
	case n <= 0:
		return ScaleConstraint{}, domain.Invalid(op, "Numerator must be a positive integer")
	case n > d:
		return ScaleConstraint{}, domain.Invalid(op, "Scale constraint must not be greater than 1")
	}
	g := gcd(n, d)
	return ScaleConstraint{Numerator: n / g, Denominator: d / g}, nil
}

// Scale returns the constraint as a float.
func (c ScaleConstraint) Scale() float64 {
	if c.Denominator == 0 {
		return 1
	}
	return float64(c.Numerator) / float64(c.Denominator)
}

// HasEffect reports whether the constraint is anything other than 1.
func (c ScaleConstraint) HasEffect() bool {
	return c.Scale() != 1
}

// Apply returns the virtual size the client sees for a full size.
func (c ScaleConstraint) Apply(full Dimension) Dimension {
	if !c.HasEffect() {
		return full
	}
	return full.Scaled(c.Scale())
}

func (c ScaleConstraint) String() string {
	if c.Denominator == 0 {
		return "1:1"
	}
	return fmt.Sprintf("%d:%d", c.Numerator, c.Denominator)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
