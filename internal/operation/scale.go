package operation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// ScaleMode selects how a Scale's target dimensions are interpreted.
type ScaleMode string

const (
	// ScaleFull leaves the image at full (constrained) size.
	ScaleFull ScaleMode = "full"
	// ScaleAspectFitWidth fits the given width; height follows the aspect.
	ScaleAspectFitWidth ScaleMode = "aspect_fit_width"
	// ScaleAspectFitHeight fits the given height; width follows the aspect.
	ScaleAspectFitHeight ScaleMode = "aspect_fit_height"
	// ScaleAspectFitInside fits within width×height using the binding axis.
	ScaleAspectFitInside ScaleMode = "aspect_fit_inside"
	// ScaleNonAspectFill forces exactly width×height.
	ScaleNonAspectFill ScaleMode = "non_aspect_fill"
)

// ParseScaleMode resolves a mode name.
func ParseScaleMode(s string) (ScaleMode, error) {
	m := ScaleMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ScaleFull, ScaleAspectFitWidth, ScaleAspectFitHeight, ScaleAspectFitInside, ScaleNonAspectFill:
		return m, nil
	}
	return "", domain.Invalid("scale.parse_mode", "unknown scale mode: "+s)
}

// Filter names a resampling filter.
type Filter string

const (
	FilterNone     Filter = ""
	FilterBell     Filter = "bell"
	FilterBicubic  Filter = "bicubic"
	FilterBox      Filter = "box"
	FilterBSpline  Filter = "bspline"
	FilterHermite  Filter = "hermite"
	FilterLanczos3 Filter = "lanczos3"
	FilterMitchell Filter = "mitchell"
	FilterTriangle Filter = "triangle"
)

// Filters lists every named filter.
func Filters() []Filter {
	return []Filter{FilterBell, FilterBicubic, FilterBox, FilterBSpline,
		FilterHermite, FilterLanczos3, FilterMitchell, FilterTriangle}
}

// ParseFilter resolves a filter name. The empty string is FilterNone.
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if f == FilterNone {
		return f, nil
	}
	for _, known := range Filters() {
		if f == known {
			return f, nil
		}
	}
	return FilterNone, domain.Invalid("scale.parse_filter", "unknown filter: "+s)
}

// Scale resizes the image.
//
// Exactly one of two request forms is active at a time: a percent (a
// uniform factor, aspect always preserved) or pixel targets interpreted by
// the mode. Setting a percent clears the pixel targets and switches the
// mode to ScaleAspectFitInside; setting a width or height clears the
// percent. Zero width, height or percent means "not given".
type Scale struct {
	mode    ScaleMode
	width   int
	height  int
	percent float64
	filter  Filter
	frozen  bool
}

// NewScale returns a full-mode Scale, which has no effect of its own.
func NewScale() *Scale {
	return &Scale{mode: ScaleFull}
}

// NewScaleByPercent returns a Scale by the given factor, where 0.5 halves
// both axes.
func NewScaleByPercent(percent float64) (*Scale, error) {
	s := NewScale()
	if err := s.SetPercent(percent); err != nil {
		return nil, err
	}
	return s, nil
}

// NewScaleByPixels returns a Scale with the given targets and mode. A zero
// width or height leaves that target unset.
func NewScaleByPixels(width, height int, mode ScaleMode) (*Scale, error) {
	s := &Scale{mode: mode}
	if width != 0 {
		if err := s.SetWidth(width); err != nil {
			return nil, err
		}
	}
	if height != 0 {
		if err := s.SetHeight(height); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scale) operation() {}

// Kind implements Operation.
func (s *Scale) Kind() string { return KindScale }

// Mode returns the active mode.
func (s *Scale) Mode() ScaleMode { return s.mode }

// Width returns the target width and whether one is set.
func (s *Scale) Width() (int, bool) { return s.width, s.width > 0 }

// Height returns the target height and whether one is set.
func (s *Scale) Height() (int, bool) { return s.height, s.height > 0 }

// Percent returns the factor and whether the scale is in percent form.
func (s *Scale) Percent() (float64, bool) { return s.percent, s.percent > 0 }

// Filter returns the resampling filter, FilterNone when unset.
func (s *Scale) Filter() Filter { return s.filter }

// IsPercent reports whether the percent form is active.
func (s *Scale) IsPercent() bool { return s.percent > 0 }

// IsFrozen implements Freezable.
func (s *Scale) IsFrozen() bool { return s.frozen }

// SetWidth sets the target width and clears any percent.
func (s *Scale) SetWidth(width int) error {
	const op = "scale.set_width"
	if s.frozen {
		return domain.Frozen(op)
	}
	if width <= 0 {
		return domain.Invalid(op, "Width must be a positive integer")
	}
	s.width = width
	s.percent = 0
	return nil
}

// SetHeight sets the target height and clears any percent.
func (s *Scale) SetHeight(height int) error {
	const op = "scale.set_height"
	if s.frozen {
		return domain.Frozen(op)
	}
	if height <= 0 {
		return domain.Invalid(op, "Height must be a positive integer")
	}
	s.height = height
	s.percent = 0
	return nil
}

// SetPercent switches to percent form.
func (s *Scale) SetPercent(percent float64) error {
	const op = "scale.set_percent"
	if s.frozen {
		return domain.Frozen(op)
	}
	if percent <= 0 || math.IsNaN(percent) || math.IsInf(percent, 0) {
		return domain.Invalid(op, "Percent must be greater than zero")
	}
	s.percent = percent
	s.width, s.height = 0, 0
	s.mode = ScaleAspectFitInside
	return nil
}

// SetMode sets the mode used to interpret pixel targets.
func (s *Scale) SetMode(mode ScaleMode) error {
	const op = "scale.set_mode"
	if s.frozen {
		return domain.Frozen(op)
	}
	if _, err := ParseScaleMode(string(mode)); err != nil {
		return domain.Invalid(op, "unknown scale mode: "+string(mode))
	}
	s.mode = mode
	return nil
}

// SetFilter sets the resampling filter.
func (s *Scale) SetFilter(filter Filter) error {
	const op = "scale.set_filter"
	if s.frozen {
		return domain.Frozen(op)
	}
	if _, err := ParseFilter(string(filter)); err != nil {
		return domain.Invalid(op, "unknown filter: "+string(filter))
	}
	s.filter = filter
	return nil
}

// ClearDimensions unsets width and height.
func (s *Scale) ClearDimensions() error {
	if s.frozen {
		return domain.Frozen("scale.clear_dimensions")
	}
	s.width, s.height = 0, 0
	return nil
}

// ClearPercent leaves percent form.
func (s *Scale) ClearPercent() error {
	if s.frozen {
		return domain.Frozen("scale.clear_percent")
	}
	s.percent = 0
	return nil
}

// Validate checks that the targets the mode needs are present.
func (s *Scale) Validate() error {
	const op = "scale.validate"
	if s.IsPercent() {
		return nil
	}
	switch s.mode {
	case ScaleFull:
	case ScaleAspectFitWidth:
		if s.width <= 0 {
			return domain.Invalid(op, "Width is required in aspect_fit_width mode")
		}
	case ScaleAspectFitHeight:
		if s.height <= 0 {
			return domain.Invalid(op, "Height is required in aspect_fit_height mode")
		}
	case ScaleAspectFitInside, ScaleNonAspectFill:
		if s.width <= 0 || s.height <= 0 {
			return domain.Invalid(op, fmt.Sprintf("Width and height are required in %s mode", s.mode))
		}
	default:
		return domain.Invalid(op, "unknown scale mode: "+string(s.mode))
	}
	return nil
}

// Freeze validates the scale and makes it immutable.
func (s *Scale) Freeze() error {
	if s.frozen {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	s.frozen = true
	return nil
}

// ResultingSize returns the output size for a full-resolution source with
// no reduction factor and no scale constraint.
func (s *Scale) ResultingSize(full geometry.Dimension) geometry.Dimension {
	return s.ResultingSizeAt(full, geometry.NoReduction(), geometry.IdentityConstraint())
}

// ResultingSizeAt returns the output size for an image of the given size
// as delivered by a reader that reduced it by rf, under constraint sc.
//
// Full and percent forms are relative to the client's virtual size
// (size·sc/2^-rf). Pixel targets are absolute; aspect-preserving modes take
// their aspect ratio from size.
func (s *Scale) ResultingSizeAt(size geometry.Dimension, rf geometry.ReductionFactor, sc geometry.ScaleConstraint) geometry.Dimension {
	virtual := sc.Scale() / rf.Scale()
	if s.IsPercent() {
		return size.Scaled(s.percent * virtual)
	}
	w, h := float64(size.Width), float64(size.Height)
	switch s.mode {
	case ScaleAspectFitWidth:
		return geometry.Dimension{
			Width:  s.width,
			Height: clampPixel(float64(s.width) * h / w),
		}
	case ScaleAspectFitHeight:
		return geometry.Dimension{
			Width:  clampPixel(float64(s.height) * w / h),
			Height: s.height,
		}
	case ScaleAspectFitInside:
		return size.Scaled(math.Min(float64(s.width)/w, float64(s.height)/h))
	case ScaleNonAspectFill:
		return geometry.Dimension{Width: s.width, Height: s.height}
	default:
		if virtual == 1 {
			return size
		}
		return size.Scaled(virtual)
	}
}

// ResultingScale returns the ratio of the output size to the true full
// size. The second result is false for ScaleNonAspectFill, which has no
// single uniform ratio.
func (s *Scale) ResultingScale(full geometry.Dimension, sc geometry.ScaleConstraint) (float64, bool) {
	if s.IsPercent() {
		return s.percent * sc.Scale(), true
	}
	switch s.mode {
	case ScaleAspectFitWidth:
		return float64(s.width) / float64(full.Width), true
	case ScaleAspectFitHeight:
		return float64(s.height) / float64(full.Height), true
	case ScaleAspectFitInside:
		return math.Min(float64(s.width)/float64(full.Width), float64(s.height)/float64(full.Height)), true
	case ScaleNonAspectFill:
		return 0, false
	default:
		return sc.Scale(), true
	}
}

// DifferentialScale returns the factor a backend must still apply after
// the reader reduced by rf under constraint sc. The second result is false
// for ScaleNonAspectFill; callers must then use the explicit per-axis
// target instead.
func (s *Scale) DifferentialScale(full geometry.Dimension, rf geometry.ReductionFactor, sc geometry.ScaleConstraint) (float64, bool) {
	if s.IsPercent() {
		return s.percent * sc.Scale() / rf.Scale(), true
	}
	switch s.mode {
	case ScaleFull:
		return sc.Scale() / rf.Scale(), true
	case ScaleNonAspectFill:
		return 0, false
	default:
		scale, ok := s.ResultingScale(full, sc)
		if !ok {
			return 0, false
		}
		return scale / rf.Scale(), true
	}
}

// ReductionFactor returns the largest reduction factor, capped at max, at
// which a reader may decode without producing fewer pixels than the output
// needs.
func (s *Scale) ReductionFactor(full geometry.Dimension, sc geometry.ScaleConstraint, max int) geometry.ReductionFactor {
	scale, ok := s.ResultingScale(full, sc)
	if !ok {
		return geometry.NoReduction()
	}
	return geometry.ReductionFactorForScale(scale, max)
}

// IsUp reports whether the scale enlarges an image of the given size.
func (s *Scale) IsUp(size geometry.Dimension) bool {
	if s.IsPercent() {
		return s.percent > 1
	}
	switch s.mode {
	case ScaleAspectFitWidth:
		return s.width > size.Width
	case ScaleAspectFitHeight:
		return s.height > size.Height
	case ScaleAspectFitInside:
		return s.ResultingSize(size).Exceeds(size)
	case ScaleNonAspectFill:
		return s.width > size.Width || s.height > size.Height
	default:
		return false
	}
}

// HasEffect reports whether the scale changes size on its own. Full mode
// and a percent of exactly 1 do not.
func (s *Scale) HasEffect() bool {
	if s.IsPercent() {
		return s.percent != 1
	}
	return s.mode != ScaleFull
}

// HasEffectIn reports whether the scale changes the size of the image
// left by the operations before it in l. A Scale absent from l is judged
// against the image left by the whole list.
func (s *Scale) HasEffectIn(full geometry.Dimension, l *List) bool {
	return s.HasEffectAt(l.FrameBefore(s, full, geometry.NoReduction()))
}

// HasEffectAt reports whether the scale changes the size held in f.
func (s *Scale) HasEffectAt(f Frame) bool {
	return s.ResultingSizeAt(f.Size, f.Reduction, f.Constraint) != f.Size
}

// Equal reports structural equality.
func (s *Scale) Equal(other *Scale) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.mode == other.mode && s.width == other.width && s.height == other.height &&
		s.percent == other.percent && s.filter == other.filter
}

// Describe returns a map suitable for structured logging, sized for the
// given full size.
func (s *Scale) Describe(full geometry.Dimension) map[string]interface{} {
	size := s.ResultingSize(full)
	return map[string]interface{}{
		"class":  "Scale",
		"width":  size.Width,
		"height": size.Height,
	}
}

// String renders the scale in IIIF-like size syntax: "none", "w,", ",h",
// "p%", "w,h" (fill) or "!w,h" (fit inside), with ",filter" appended when a
// filter is set.
func (s *Scale) String() string {
	var b strings.Builder
	switch {
	case s.IsPercent():
		b.WriteString(strconv.FormatFloat(math.Round(s.percent*100*1e6)/1e6, 'f', -1, 64))
		b.WriteString("%")
	case s.mode == ScaleAspectFitWidth:
		fmt.Fprintf(&b, "%d,", s.width)
	case s.mode == ScaleAspectFitHeight:
		fmt.Fprintf(&b, ",%d", s.height)
	case s.mode == ScaleNonAspectFill:
		fmt.Fprintf(&b, "%d,%d", s.width, s.height)
	case s.mode == ScaleAspectFitInside:
		fmt.Fprintf(&b, "!%d,%d", s.width, s.height)
	default:
		b.WriteString("none")
	}
	if s.filter != FilterNone {
		b.WriteString(",")
		b.WriteString(string(s.filter))
	}
	return b.String()
}

func clampPixel(v float64) int {
	if r := geometry.Round(v); r > 0 {
		return r
	}
	return 1
}
