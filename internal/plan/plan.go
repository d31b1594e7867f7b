// Package plan holds the backend-agnostic rendering plan: an ordered list of
// directives a backend executes from first to last.
//
// Directive is a closed set. A plan starts with Input, preceded by Density
// for vector sources, and ends with Depth and Output. Everything between
// follows the order of the operation list it was translated from.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// Directive kinds, as reported by Kind.
const (
	KindInput      = "input"
	KindDensity    = "density"
	KindOrient     = "orient"
	KindBackground = "background"
	KindCrop       = "crop"
	KindResize     = "resize"
	KindFlip       = "flip"
	KindRotate     = "rotate"
	KindColorspace = "colorspace"
	KindSharpen    = "sharpen"
	KindComposite  = "composite"
	KindEncode     = "encode"
	KindDepth      = "depth"
	KindOutput     = "output"
)

// Directive is one step of a Plan.
type Directive interface {
	Kind() string
	directive()
}

// Input selects the source format and, for paged sources, the 0-based page.
type Input struct {
	Format format.Format `json:"format"`
	Page   *int          `json:"page,omitempty"`
}

// Density sets the rasterization resolution of a vector source.
type Density struct {
	DPI float64 `json:"dpi"`
}

// Orient rotates the source upright before any other geometry.
type Orient struct {
	Degrees int `json:"degrees"`
}

// Background fills transparent areas. Transparent keeps the alpha channel;
// otherwise Color is a "#rrggbb" fill.
type Background struct {
	Transparent bool   `json:"transparent"`
	Color       string `json:"color,omitempty"`
}

// Crop extracts Rect, in pixels of the image as it stands.
type Crop struct {
	Rect geometry.Rectangle `json:"rect"`
}

// ResizeMode says which fields of Resize carry the target.
type ResizeMode string

const (
	// ResizeFactor scales both axes uniformly by Factor.
	ResizeFactor ResizeMode = "factor"
	// ResizeWidth fits Width, deriving the height.
	ResizeWidth ResizeMode = "width"
	// ResizeHeight fits Height, deriving the width.
	ResizeHeight ResizeMode = "height"
	// ResizeInside fits within Width x Height.
	ResizeInside ResizeMode = "inside"
	// ResizeFill forces exactly Width x Height.
	ResizeFill ResizeMode = "fill"
)

// Resize scales the image. Size is always the exact pixel size the resize
// must produce; Factor or Width/Height express the same target in the form
// a backend's resize syntax wants.
type Resize struct {
	Mode   ResizeMode         `json:"mode"`
	Filter string             `json:"filter,omitempty"`
	Factor float64            `json:"factor,omitempty"`
	Width  int                `json:"width,omitempty"`
	Height int                `json:"height,omitempty"`
	Size   geometry.Dimension `json:"size"`
}

// Flip mirrors the image. Axis is "horizontal" or "vertical".
type Flip struct {
	Axis string `json:"axis"`
}

// Rotate turns the image clockwise.
type Rotate struct {
	Degrees float64 `json:"degrees"`
}

// Colorspace converts to "gray" or "bitonal".
type Colorspace struct {
	Transform string `json:"transform"`
}

// Sharpen applies an unsharp mask.
type Sharpen struct {
	Amount float64 `json:"amount"`
}

// Gravity anchors a composite.
type Gravity string

const (
	NorthWest Gravity = "northwest"
	North     Gravity = "north"
	NorthEast Gravity = "northeast"
	West      Gravity = "west"
	Centered  Gravity = "center"
	East      Gravity = "east"
	SouthWest Gravity = "southwest"
	South     Gravity = "south"
	SouthEast Gravity = "southeast"
)

// Composite draws the image at Path over the output. Offsets are measured
// inward from the gravity's edges.
type Composite struct {
	Path    string  `json:"path"`
	Ref     string  `json:"ref"`
	Gravity Gravity `json:"gravity"`
	OffsetX int     `json:"offset_x"`
	OffsetY int     `json:"offset_y"`
}

// Encode carries the output codec options.
type Encode struct {
	Format      format.Format `json:"format"`
	Quality     int           `json:"quality"`
	Interlace   bool          `json:"interlace,omitempty"`
	Compression string        `json:"compression,omitempty"`
}

// Depth sets the bits per channel.
type Depth struct {
	Bits int `json:"bits"`
}

// Output names the format written.
type Output struct {
	Format format.Format `json:"format"`
}

func (Input) directive()      {}
func (Density) directive()    {}
func (Orient) directive()     {}
func (Background) directive() {}
func (Crop) directive()       {}
func (Resize) directive()     {}
func (Flip) directive()       {}
func (Rotate) directive()     {}
func (Colorspace) directive() {}
func (Sharpen) directive()    {}
func (Composite) directive()  {}
func (Encode) directive()     {}
func (Depth) directive()      {}
func (Output) directive()     {}

func (Input) Kind() string      { return KindInput }
func (Density) Kind() string    { return KindDensity }
func (Orient) Kind() string     { return KindOrient }
func (Background) Kind() string { return KindBackground }
func (Crop) Kind() string       { return KindCrop }
func (Resize) Kind() string     { return KindResize }
func (Flip) Kind() string       { return KindFlip }
func (Rotate) Kind() string     { return KindRotate }
func (Colorspace) Kind() string { return KindColorspace }
func (Sharpen) Kind() string    { return KindSharpen }
func (Composite) Kind() string  { return KindComposite }
func (Encode) Kind() string     { return KindEncode }
func (Depth) Kind() string      { return KindDepth }
func (Output) Kind() string     { return KindOutput }

// Plan is an ordered list of directives plus the warnings recorded while
// translating it.
type Plan struct {
	Directives []Directive
	Warnings   []string

	// Elided lists the kinds of the operations dropped as no-ops.
	Elided []string

	// Size is the pixel size the plan produces.
	Size geometry.Dimension
}

// Add appends d.
func (p *Plan) Add(d Directive) {
	p.Directives = append(p.Directives, d)
}

// Warn records a non-fatal problem.
func (p *Plan) Warn(msg string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(msg, args...))
}

// Count returns how many directives are of kind.
func (p *Plan) Count(kind string) int {
	n := 0
	for _, d := range p.Directives {
		if d.Kind() == kind {
			n++
		}
	}
	return n
}

// Find returns the first directive of kind, or nil.
func (p *Plan) Find(kind string) Directive {
	for _, d := range p.Directives {
		if d.Kind() == kind {
			return d
		}
	}
	return nil
}

// Kinds returns the kind of every directive in order.
func (p *Plan) Kinds() []string {
	out := make([]string, len(p.Directives))
	for i, d := range p.Directives {
		out[i] = d.Kind()
	}
	return out
}

// OutputFormat returns the format of the Output directive.
func (p *Plan) OutputFormat() format.Format {
	if o, ok := p.Find(KindOutput).(Output); ok {
		return o.Format
	}
	return format.Unknown
}

func (p *Plan) String() string {
	return strings.Join(p.Kinds(), " > ")
}

type directiveJSON struct {
	Type   string    `json:"type"`
	Params Directive `json:"params"`
}

type planJSON struct {
	Directives []directiveJSON    `json:"directives"`
	Warnings   []string           `json:"warnings"`
	Elided     []string           `json:"elided,omitempty"`
	Size       geometry.Dimension `json:"size"`
}

// MarshalJSON encodes every directive as {"type": kind, "params": {...}}.
func (p *Plan) MarshalJSON() ([]byte, error) {
	out := planJSON{
		Directives: make([]directiveJSON, len(p.Directives)),
		Warnings:   p.Warnings,
		Elided:     p.Elided,
		Size:       p.Size,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	for i, d := range p.Directives {
		out.Directives[i] = directiveJSON{Type: d.Kind(), Params: d}
	}
	return json.Marshal(out)
}
