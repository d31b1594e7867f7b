package pipeline

import (
	"strconv"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
	"github.com/ironsheep/image-pipeline-mcp/internal/source"
)

// Assets maps an overlay reference to the path of its local copy.
type Assets map[string]string

// Options tune translation.
type Options struct {
	// Reduction is the factor the reader applied when decoding the source.
	// Vector sources ignore it; their reduction follows from the density.
	Reduction geometry.ReductionFactor

	// Background is the "#rrggbb" fill used when the output has no alpha
	// channel and the Encode names no colour. Empty means no fill.
	Background string

	// BaseDPI is the vector rasterization density at nominal size.
	// Zero means DefaultBaseDPI.
	BaseDPI float64

	// MaxReduction caps the reduction used to lower the density.
	MaxReduction int
}

// Translate resolves a frozen operation list against a source into a
// rendering plan. It performs no I/O.
//
// Operations are emitted in list order. Those with no effect on the image
// they receive are left out and listed in Plan.Elided. Overlays whose
// reference is missing from assets are skipped with a warning.
func Translate(l *operation.List, info source.Info, assets Assets, opts Options) (*plan.Plan, error) {
	const op = "pipeline.translate"

	if l == nil || !l.IsFrozen() {
		return nil, domain.State(op, "operation list must be frozen")
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	enc := l.Encode()
	out := enc.Format()

	p := &plan.Plan{}

	input := plan.Input{Format: info.Format}
	if info.Format.IsPaged() {
		page := pageIndex(l, p)
		input.Page = &page
	}
	// vector sources are rasterized at a density matching the first scale,
	// which must be set before the input is read. The rasterizer has then
	// already applied that reduction.
	rf := opts.Reduction
	if info.Format.IsVector() {
		base := opts.BaseDPI
		if base <= 0 {
			base = DefaultBaseDPI
		}
		rf = densityReduction(l, info.OrientedSize(), opts.MaxReduction)
		p.Add(plan.Density{DPI: base * rf.Scale()})
	}
	p.Add(input)

	if info.Orientation != nil && !info.Orientation.IsIdentity() {
		p.Add(plan.Orient{Degrees: info.Orientation.Degrees()})
	}

	switch {
	case out.SupportsTransparency():
		p.Add(plan.Background{Transparent: true})
	case enc.BackgroundHex() != "":
		p.Add(plan.Background{Color: enc.BackgroundHex()})
	case opts.Background != "":
		c, err := operation.ParseColor(opts.Background)
		if err != nil {
			return nil, domain.Wrap(err, domain.EINVALID, op, "invalid default background "+opts.Background)
		}
		p.Add(plan.Background{Color: c.Hex()})
	}

	var walkErr error
	final := l.Walk(info.OrientedSize(), rf, func(o operation.Operation, f operation.Frame) {
		if walkErr != nil {
			return
		}
		d, ok, err := directiveFor(o, f, assets, p)
		if err != nil {
			walkErr = err
			return
		}
		if !ok {
			p.Elided = append(p.Elided, o.Kind())
			return
		}
		if d != nil {
			p.Add(d)
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}

	p.Add(plan.Depth{Bits: 8})
	p.Add(plan.Output{Format: out})
	p.Size = final.Size
	return p, nil
}

// directiveFor returns the directive for o at frame f. ok is false when o
// has no effect there. A nil directive with ok true means o was consumed
// without emitting anything.
func directiveFor(o operation.Operation, f operation.Frame, assets Assets, p *plan.Plan) (plan.Directive, bool, error) {
	switch v := o.(type) {
	case *operation.Crop:
		if !v.HasEffectAt(f) {
			return nil, false, nil
		}
		r, err := v.RectangleIn(f)
		if err != nil {
			return nil, false, err
		}
		return plan.Crop{Rect: r}, true, nil

	case *operation.Scale:
		if !v.HasEffectAt(f) {
			return nil, false, nil
		}
		return resizeFor(v, f), true, nil

	case operation.Transpose:
		return plan.Flip{Axis: string(v)}, true, nil

	case operation.Rotate:
		if !v.HasEffect() {
			return nil, false, nil
		}
		return plan.Rotate{Degrees: v.Degrees}, true, nil

	case operation.ColorTransform:
		return plan.Colorspace{Transform: string(v)}, true, nil

	case operation.Sharpen:
		if !v.HasEffect() {
			return nil, false, nil
		}
		return plan.Sharpen{Amount: v.Amount}, true, nil

	case *operation.Overlay:
		path, found := assets[v.Ref()]
		if !found || path == "" {
			p.Warn("overlay not found: %s", v.Ref())
			return nil, true, nil
		}
		g, x, y := Gravity(v.Position(), v.Inset())
		return plan.Composite{Path: path, Ref: v.Ref(), Gravity: g, OffsetX: x, OffsetY: y}, true, nil

	case *operation.Encode:
		return plan.Encode{
			Format:      v.Format(),
			Quality:     v.Quality(),
			Interlace:   v.Interlace(),
			Compression: string(v.Compression()),
		}, true, nil
	}
	return nil, false, domain.Internal(nil, "pipeline.translate", "unhandled operation "+o.Kind())
}

func resizeFor(s *operation.Scale, f operation.Frame) plan.Resize {
	r := plan.Resize{
		Filter: string(s.Filter()),
		Size:   s.ResultingSizeAt(f.Size, f.Reduction, f.Constraint),
	}
	virtual := f.Constraint.Scale() / f.Reduction.Scale()
	if p, ok := s.Percent(); ok {
		r.Mode = plan.ResizeFactor
		r.Factor = p * virtual
		return r
	}
	w, _ := s.Width()
	h, _ := s.Height()
	switch s.Mode() {
	case operation.ScaleAspectFitWidth:
		r.Mode, r.Width = plan.ResizeWidth, w
	case operation.ScaleAspectFitHeight:
		r.Mode, r.Height = plan.ResizeHeight, h
	case operation.ScaleAspectFitInside:
		r.Mode, r.Width, r.Height = plan.ResizeInside, w, h
	case operation.ScaleNonAspectFill:
		r.Mode, r.Width, r.Height = plan.ResizeFill, w, h
	default:
		r.Mode = plan.ResizeFactor
		r.Factor = virtual
	}
	return r
}

// pageIndex converts the 1-based page option to a 0-based index. A value
// that is not an integer selects the first page and records a warning.
func pageIndex(l *operation.List, p *plan.Plan) int {
	raw, ok := l.Option(operation.OptionPage)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.Warn("page %q is not an integer; using page 1", raw)
		return 0
	}
	if n < 1 {
		return 0
	}
	return n - 1
}

// Gravity maps an overlay position and inset to a composite gravity and
// inward offsets. Corners are inset on both axes, edge centres on the axis
// perpendicular to their edge, and the centre not at all.
func Gravity(pos operation.Position, inset int) (plan.Gravity, int, int) {
	switch pos {
	case operation.TopLeft:
		return plan.NorthWest, inset, inset
	case operation.TopCenter:
		return plan.North, 0, inset
	case operation.TopRight:
		return plan.NorthEast, inset, inset
	case operation.LeftCenter:
		return plan.West, inset, 0
	case operation.RightCenter:
		return plan.East, inset, 0
	case operation.BottomLeft:
		return plan.SouthWest, inset, inset
	case operation.BottomCenter:
		return plan.South, 0, inset
	case operation.BottomRight:
		return plan.SouthEast, inset, inset
	}
	return plan.Centered, 0, 0
}
