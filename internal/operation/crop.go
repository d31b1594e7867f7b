package operation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// CropShape selects what region a Crop describes.
type CropShape string

const (
	// CropRegion uses the crop's explicit rectangle.
	CropRegion CropShape = "region"
	// CropFull covers the whole image.
	CropFull CropShape = "full"
	// CropSquare is the largest centred square.
	CropSquare CropShape = "square"
)

// CropUnit says how a region's coordinates are expressed.
type CropUnit string

const (
	// CropPixels coordinates are pixels in the client's coordinate space,
	// which is the full size reduced by the list's scale constraint.
	CropPixels CropUnit = "pixels"
	// CropPercent coordinates are fractions of the image in [0, 1].
	CropPercent CropUnit = "percent"
)

// Crop extracts a rectangular region.
type Crop struct {
	shape  CropShape
	unit   CropUnit
	x, y   float64
	width  float64
	height float64
	frozen bool
}

// NewCrop returns a pixel region crop.
func NewCrop(x, y, width, height int) *Crop {
	return &Crop{
		shape:  CropRegion,
		unit:   CropPixels,
		x:      float64(x),
		y:      float64(y),
		width:  float64(width),
		height: float64(height),
	}
}

// NewPercentCrop returns a region crop whose coordinates are fractions of
// the image.
func NewPercentCrop(x, y, width, height float64) *Crop {
	return &Crop{shape: CropRegion, unit: CropPercent, x: x, y: y, width: width, height: height}
}

// NewFullCrop returns a crop covering the whole image.
func NewFullCrop() *Crop {
	return &Crop{shape: CropFull, unit: CropPixels}
}

// NewSquareCrop returns a centred square crop.
func NewSquareCrop() *Crop {
	return &Crop{shape: CropSquare, unit: CropPixels}
}

func (c *Crop) operation() {}

// Kind implements Operation.
func (c *Crop) Kind() string { return KindCrop }

func (c *Crop) Shape() CropShape { return c.shape }
func (c *Crop) Unit() CropUnit   { return c.unit }
func (c *Crop) X() float64       { return c.x }
func (c *Crop) Y() float64       { return c.y }
func (c *Crop) Width() float64   { return c.width }
func (c *Crop) Height() float64  { return c.height }

// IsFrozen implements Freezable.
func (c *Crop) IsFrozen() bool { return c.frozen }

// SetX sets the left edge.
func (c *Crop) SetX(x float64) error {
	const op = "crop.set_x"
	if c.frozen {
		return domain.Frozen(op)
	}
	if x < 0 {
		return domain.Invalid(op, "X must be a positive float")
	}
	c.x = x
	return nil
}

// SetY sets the top edge.
func (c *Crop) SetY(y float64) error {
	const op = "crop.set_y"
	if c.frozen {
		return domain.Frozen(op)
	}
	if y < 0 {
		return domain.Invalid(op, "Y must be a positive float")
	}
	c.y = y
	return nil
}

// SetWidth sets the region width.
func (c *Crop) SetWidth(width float64) error {
	const op = "crop.set_width"
	if c.frozen {
		return domain.Frozen(op)
	}
	if width <= 0 {
		return domain.Invalid(op, "Width must be a positive integer")
	}
	c.width = width
	return nil
}

// SetHeight sets the region height.
func (c *Crop) SetHeight(height float64) error {
	const op = "crop.set_height"
	if c.frozen {
		return domain.Frozen(op)
	}
	if height <= 0 {
		return domain.Invalid(op, "Height must be a positive integer")
	}
	c.height = height
	return nil
}

// SetUnit changes how coordinates are interpreted.
func (c *Crop) SetUnit(unit CropUnit) error {
	const op = "crop.set_unit"
	if c.frozen {
		return domain.Frozen(op)
	}
	if unit != CropPixels && unit != CropPercent {
		return domain.Invalid(op, "unknown crop unit: "+string(unit))
	}
	c.unit = unit
	return nil
}

// SetShape changes the crop shape.
func (c *Crop) SetShape(shape CropShape) error {
	const op = "crop.set_shape"
	if c.frozen {
		return domain.Frozen(op)
	}
	switch shape {
	case CropRegion, CropFull, CropSquare:
	default:
		return domain.Invalid(op, "unknown crop shape: "+string(shape))
	}
	c.shape = shape
	return nil
}

// Validate checks the region.
func (c *Crop) Validate() error {
	const op = "crop.validate"
	if c.shape != CropRegion {
		return nil
	}
	if c.x < 0 || c.y < 0 {
		return domain.Invalid(op, "Crop origin must not be negative")
	}
	if c.width <= 0 || c.height <= 0 {
		return domain.Invalid(op, "Crop width and height must be greater than zero")
	}
	if c.unit == CropPercent {
		if c.x >= 1 || c.y >= 1 || c.width > 1 || c.height > 1 {
			return domain.Invalid(op, "Percentage crop values must be fractions no greater than 1")
		}
	}
	return nil
}

// Freeze validates the crop and makes it immutable.
func (c *Crop) Freeze() error {
	if c.frozen {
		return nil
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.frozen = true
	return nil
}

// Rectangle returns the crop region in pixels of a full-resolution source
// under constraint sc, clipped to the image.
func (c *Crop) Rectangle(full geometry.Dimension, sc geometry.ScaleConstraint) (geometry.Rectangle, error) {
	return c.RectangleIn(NewFrame(full, geometry.NoReduction(), sc))
}

// RectangleIn returns the crop region in the held pixels of frame f,
// clipped to the image. A region entirely outside the image is an
// EINVALID error.
func (c *Crop) RectangleIn(f Frame) (geometry.Rectangle, error) {
	const op = "crop.rectangle"
	size := f.Size
	var r geometry.Rectangle
	switch c.shape {
	case CropFull:
		return geometry.FullRectangle(size), nil
	case CropSquare:
		side := math.Min(float64(size.Width), float64(size.Height))
		r = geometry.Rectangle{
			X:      (float64(size.Width) - side) / 2,
			Y:      (float64(size.Height) - side) / 2,
			Width:  side,
			Height: side,
		}
	default:
		if c.unit == CropPercent {
			r = geometry.Rectangle{
				X:      c.x * float64(size.Width),
				Y:      c.y * float64(size.Height),
				Width:  c.width * float64(size.Width),
				Height: c.height * float64(size.Height),
			}
		} else {
			r = geometry.Rectangle{X: c.x, Y: c.y, Width: c.width, Height: c.height}.
				Scaled(f.ClientFactor())
		}
	}
	r = r.ClippedTo(size)
	if r.IsEmpty() {
		return geometry.Rectangle{}, domain.Invalid(op,
			fmt.Sprintf("crop area %s is outside the %s image", c, size))
	}
	return r, nil
}

// HasEffect reports whether the crop could change the image.
func (c *Crop) HasEffect() bool {
	if c.shape == CropFull {
		return false
	}
	if c.shape == CropRegion && c.unit == CropPercent {
		return c.x != 0 || c.y != 0 || c.width != 1 || c.height != 1
	}
	return true
}

// HasEffectIn reports whether the crop region differs from the whole of
// the image left by the operations before it in l. A crop that cannot be
// resolved reports an effect so the failure surfaces when it is applied.
func (c *Crop) HasEffectIn(full geometry.Dimension, l *List) bool {
	return c.HasEffectAt(l.FrameBefore(c, full, geometry.NoReduction()))
}

// HasEffectAt reports whether the crop region differs from the whole of
// the image held in f.
func (c *Crop) HasEffectAt(f Frame) bool {
	if !c.HasEffect() {
		return false
	}
	r, err := c.RectangleIn(f)
	if err != nil {
		return true
	}
	return !r.Covers(f.Size)
}

// Equal reports structural equality.
func (c *Crop) Equal(other *Crop) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.shape == other.shape && c.unit == other.unit && c.x == other.x &&
		c.y == other.y && c.width == other.width && c.height == other.height
}

func (c *Crop) String() string {
	switch c.shape {
	case CropFull:
		return "full"
	case CropSquare:
		return "square"
	}
	if c.unit == CropPercent {
		return "pct:" + pct(c.x) + "," + pct(c.y) + "," + pct(c.width) + "," + pct(c.height)
	}
	return fmt.Sprintf("%s,%s,%s,%s", num(c.x), num(c.y), num(c.width), num(c.height))
}

func pct(v float64) string {
	return num(math.Round(v*100*1e6) / 1e6)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
