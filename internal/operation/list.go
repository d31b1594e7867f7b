package operation

import (
	"sort"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// OptionPage is the option key selecting a 1-based page of a paged source.
const OptionPage = "page"

// List is an ordered sequence of operations with a scale constraint and
// free-form options. It is append-only until Freeze; afterwards every
// mutation returns an ESTATE error and the list is safe to share.
type List struct {
	ops        []Operation
	constraint geometry.ScaleConstraint
	options    map[string]string
	frozen     bool
}

// NewList returns an unfrozen list holding ops in order.
func NewList(ops ...Operation) (*List, error) {
	l := &List{
		constraint: geometry.IdentityConstraint(),
		options:    make(map[string]string),
	}
	for _, op := range ops {
		if err := l.Add(op); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends op. A list holds at most one Encode.
func (l *List) Add(op Operation) error {
	const opName = "operation_list.add"
	if l.frozen {
		return domain.Frozen(opName)
	}
	if op == nil {
		return domain.Invalid(opName, "operation must not be nil")
	}
	if _, ok := op.(*Encode); ok && l.Encode() != nil {
		return domain.Invalid(opName, "operation list already contains an Encode")
	}
	l.ops = append(l.ops, op)
	return nil
}

// SetScaleConstraint replaces the constraint.
func (l *List) SetScaleConstraint(sc geometry.ScaleConstraint) error {
	if l.frozen {
		return domain.Frozen("operation_list.set_scale_constraint")
	}
	l.constraint = sc
	return nil
}

// SetOption records a free-form option such as OptionPage.
func (l *List) SetOption(key, value string) error {
	if l.frozen {
		return domain.Frozen("operation_list.set_option")
	}
	l.options[key] = value
	return nil
}

// Freeze validates the list, freezes every operation it holds and makes
// the list immutable. It is idempotent.
//
// The list must contain exactly one Encode. When the scale constraint has
// an effect and no Scale is present, a full-mode Scale is inserted after
// the run of Crops that opens the list, or first when there is none, so
// the output is reduced to the client's virtual size.
func (l *List) Freeze() error {
	const op = "operation_list.freeze"
	if l.frozen {
		return nil
	}
	if l.Encode() == nil {
		return domain.Invalid(op, "operation list must contain an Encode")
	}
	for _, o := range l.ops {
		if f, ok := o.(Freezable); ok {
			if err := f.Validate(); err != nil {
				return err
			}
		}
	}
	if l.constraint.HasEffect() && l.FirstScale() == nil {
		at := 0
		for _, o := range l.ops {
			if _, ok := o.(*Crop); !ok {
				break
			}
			at++
		}
		l.ops = append(l.ops, nil)
		copy(l.ops[at+1:], l.ops[at:])
		l.ops[at] = NewScale()
	}
	for _, o := range l.ops {
		if f, ok := o.(Freezable); ok {
			if err := f.Freeze(); err != nil {
				return err
			}
		}
	}
	l.frozen = true
	return nil
}

// IsFrozen reports whether Freeze has succeeded.
func (l *List) IsFrozen() bool { return l.frozen }

// Len returns the number of operations.
func (l *List) Len() int { return len(l.ops) }

// At returns the i-th operation.
func (l *List) At(i int) Operation { return l.ops[i] }

// All returns a copy of the operations in order.
func (l *List) All() []Operation {
	out := make([]Operation, len(l.ops))
	copy(out, l.ops)
	return out
}

// ScaleConstraint returns the list's constraint.
func (l *List) ScaleConstraint() geometry.ScaleConstraint { return l.constraint }

// Option returns a single option.
func (l *List) Option(key string) (string, bool) {
	v, ok := l.options[key]
	return v, ok
}

// Options returns a copy of every option.
func (l *List) Options() map[string]string {
	out := make(map[string]string, len(l.options))
	for k, v := range l.options {
		out[k] = v
	}
	return out
}

// FirstScale returns the first Scale, or nil.
func (l *List) FirstScale() *Scale {
	for _, o := range l.ops {
		if s, ok := o.(*Scale); ok {
			return s
		}
	}
	return nil
}

// FirstCrop returns the first Crop, or nil.
func (l *List) FirstCrop() *Crop {
	for _, o := range l.ops {
		if c, ok := o.(*Crop); ok {
			return c
		}
	}
	return nil
}

// Encode returns the list's Encode, or nil.
func (l *List) Encode() *Encode {
	for _, o := range l.ops {
		if e, ok := o.(*Encode); ok {
			return e
		}
	}
	return nil
}

// Overlays returns every Overlay in order.
func (l *List) Overlays() []*Overlay {
	var out []*Overlay
	for _, o := range l.ops {
		if ov, ok := o.(*Overlay); ok {
			out = append(out, ov)
		}
	}
	return out
}

// OutputFormat is the Encode's format, or format.Unknown without one.
func (l *List) OutputFormat() format.Format {
	if e := l.Encode(); e != nil {
		return e.Format()
	}
	return format.Unknown
}

// Walk calls fn with each operation and the frame before it, starting from
// a source of the given full size decoded at rf, and returns the frame
// left after the last operation.
func (l *List) Walk(full geometry.Dimension, rf geometry.ReductionFactor, fn func(op Operation, before Frame)) Frame {
	f := NewFrame(full, rf, l.constraint)
	for _, op := range l.ops {
		if fn != nil {
			fn(op, f)
		}
		f = advance(op, f)
	}
	return f
}

// FrameBefore returns the frame target sees at its position in l. When
// target is not in l the frame after the whole list is returned.
func (l *List) FrameBefore(target Operation, full geometry.Dimension, rf geometry.ReductionFactor) Frame {
	if l == nil {
		return NewFrame(full, rf, geometry.IdentityConstraint())
	}
	f := NewFrame(full, rf, l.constraint)
	for _, op := range l.ops {
		if op == target {
			return f
		}
		f = advance(op, f)
	}
	return f
}

// ResultingSize returns the size of the image the list produces from a
// source of the given full size.
func (l *List) ResultingSize(full geometry.Dimension) geometry.Dimension {
	return l.Walk(full, geometry.NoReduction(), nil).ClientSize()
}

// String joins the operations and options into a stable identifier.
func (l *List) String() string {
	parts := make([]string, 0, len(l.ops)+2)
	for _, op := range l.ops {
		if op.HasEffect() {
			parts = append(parts, op.String())
		}
	}
	if l.constraint.HasEffect() {
		parts = append(parts, "sc:"+l.constraint.String())
	}
	keys := make([]string, 0, len(l.options))
	for k := range l.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+":"+l.options[k])
	}
	return strings.Join(parts, "_")
}
