// Package operation models the ordered transformation requests a client
// makes against a source image: crop, scale, transpose, rotate, colour
// transform, sharpen, overlay and encode.
//
// # Variants
//
// Operation is a closed set. The concrete types are *Crop, *Scale,
// Transpose, Rotate, ColorTransform, Sharpen, *Overlay and *Encode; the
// interface carries an unexported method so no other package can add one.
// Consumers dispatch with a type switch.
//
// # Freezing
//
// Pointer variants are mutable until frozen. A List freezes every
// operation it holds; after that every setter returns an ESTATE error.
// Frozen values are read-only and safe to share between goroutines.
//
// # Frames
//
// A Frame describes the image as it stands between two operations of a
// list: the pixel size currently held, the reduction factor the reader
// applied and the scale constraint that has not yet been resolved by a
// Scale. Effect tests and plan translation both walk a list frame by frame
// so every operation is judged against the geometry its predecessors left.
package operation

import (
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// Operation kinds, as reported by Kind.
const (
	KindCrop           = "crop"
	KindScale          = "scale"
	KindTranspose      = "transpose"
	KindRotate         = "rotate"
	KindColorTransform = "color_transform"
	KindSharpen        = "sharpen"
	KindOverlay        = "overlay"
	KindEncode         = "encode"
)

// Operation is one step of a List.
type Operation interface {
	// Kind names the variant.
	Kind() string

	// HasEffect reports whether the operation changes the image in
	// isolation, without regard to any list context.
	HasEffect() bool

	// HasEffectIn reports whether the operation changes the image when
	// applied at its position in l to a source of the given full size.
	HasEffectIn(full geometry.Dimension, l *List) bool

	String() string

	operation()
}

// Freezable is implemented by the mutable variants.
type Freezable interface {
	Validate() error
	Freeze() error
	IsFrozen() bool
}

// Frame is the state of the image between two operations.
type Frame struct {
	// Size is the pixel size currently held.
	Size geometry.Dimension `json:"size"`

	// Reduction is the reader's reduction factor still to be accounted for.
	Reduction geometry.ReductionFactor `json:"reduction_factor"`

	// Constraint is the scale constraint still to be resolved.
	Constraint geometry.ScaleConstraint `json:"scale_constraint"`
}

// NewFrame returns the frame a reader delivers for a source of the given
// full size decoded at rf, under constraint sc.
func NewFrame(full geometry.Dimension, rf geometry.ReductionFactor, sc geometry.ScaleConstraint) Frame {
	return Frame{Size: rf.Apply(full), Reduction: rf, Constraint: sc}
}

// ClientFactor converts lengths in the client's coordinate space to held
// pixels.
func (f Frame) ClientFactor() float64 {
	return f.Reduction.Scale() / f.Constraint.Scale()
}

// ClientSize is the size of the held image as the client addresses it.
func (f Frame) ClientSize() geometry.Dimension {
	k := f.ClientFactor()
	if k == 1 {
		return f.Size
	}
	return f.Size.Scaled(1 / k)
}

// Pending reports whether the frame still carries a reduction factor or
// scale constraint that a Scale must resolve.
func (f Frame) Pending() bool {
	return f.ClientFactor() != 1
}

// advance returns the frame left after op.
func advance(op Operation, f Frame) Frame {
	switch o := op.(type) {
	case *Crop:
		if r, err := o.RectangleIn(f); err == nil {
			f.Size = r.Size()
		}
	case *Scale:
		f.Size = o.ResultingSizeAt(f.Size, f.Reduction, f.Constraint)
		f.Reduction = geometry.NoReduction()
		f.Constraint = geometry.IdentityConstraint()
	case Rotate:
		f.Size = o.ResultingSize(f.Size)
	}
	return f
}
