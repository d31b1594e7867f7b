package operation

import (
	"math"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// Transpose mirrors the image.
type Transpose string

const (
	// TransposeHorizontal mirrors across the vertical axis.
	TransposeHorizontal Transpose = "horizontal"
	// TransposeVertical mirrors across the horizontal axis.
	TransposeVertical Transpose = "vertical"
)

// ParseTranspose resolves an axis name.
func ParseTranspose(s string) (Transpose, error) {
	t := Transpose(strings.ToLower(strings.TrimSpace(s)))
	if t == TransposeHorizontal || t == TransposeVertical {
		return t, nil
	}
	return "", domain.Invalid("transpose.parse", "unknown transpose axis: "+s)
}

func (t Transpose) operation()                                 {}
func (t Transpose) Kind() string                               { return KindTranspose }
func (t Transpose) HasEffect() bool                            { return true }
func (t Transpose) HasEffectIn(geometry.Dimension, *List) bool { return true }
func (t Transpose) String() string                             { return string(t) }

// Rotate turns the image clockwise by Degrees.
type Rotate struct {
	Degrees float64
}

// NewRotate validates the angle, which must lie in [0, 360].
func NewRotate(degrees float64) (Rotate, error) {
	if degrees < 0 || degrees > 360 || math.IsNaN(degrees) {
		return Rotate{}, domain.Invalid("rotate.new", "Degrees must be between 0 and 360")
	}
	return Rotate{Degrees: degrees}, nil
}

func (r Rotate) operation()   {}
func (r Rotate) Kind() string { return KindRotate }

// HasEffect reports whether the angle is not a whole turn.
func (r Rotate) HasEffect() bool {
	return math.Mod(r.Degrees, 360) != 0
}

// HasEffectIn is the same as HasEffect.
func (r Rotate) HasEffectIn(geometry.Dimension, *List) bool {
	return r.HasEffect()
}

// ResultingSize is the bounding box of size after rotation.
func (r Rotate) ResultingSize(size geometry.Dimension) geometry.Dimension {
	deg := math.Mod(r.Degrees, 360)
	switch deg {
	case 0, 180:
		return size
	case 90, 270:
		return size.Swapped()
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	w, h := float64(size.Width), float64(size.Height)
	return geometry.Dimension{
		Width:  geometry.Round(w*cos + h*sin),
		Height: geometry.Round(w*sin + h*cos),
	}
}

func (r Rotate) String() string { return num(r.Degrees) }

// ColorTransform converts the image's colour model.
type ColorTransform string

const (
	// ColorGray converts to grayscale.
	ColorGray ColorTransform = "gray"
	// ColorBitonal converts to black and white.
	ColorBitonal ColorTransform = "bitonal"
)

// ParseColorTransform resolves a transform name.
func ParseColorTransform(s string) (ColorTransform, error) {
	c := ColorTransform(strings.ToLower(strings.TrimSpace(s)))
	if c == ColorGray || c == ColorBitonal {
		return c, nil
	}
	return "", domain.Invalid("color_transform.parse", "unknown color transform: "+s)
}

func (c ColorTransform) operation()                                 {}
func (c ColorTransform) Kind() string                               { return KindColorTransform }
func (c ColorTransform) HasEffect() bool                            { return true }
func (c ColorTransform) HasEffectIn(geometry.Dimension, *List) bool { return true }
func (c ColorTransform) String() string                             { return string(c) }

// Sharpen applies an unsharp mask of the given amount.
type Sharpen struct {
	Amount float64
}

// NewSharpen validates the amount, which must not be negative.
func NewSharpen(amount float64) (Sharpen, error) {
	if amount < 0 || math.IsNaN(amount) {
		return Sharpen{}, domain.Invalid("sharpen.new", "Sharpen amount must be greater than or equal to zero")
	}
	return Sharpen{Amount: amount}, nil
}

func (s Sharpen) operation()                                 {}
func (s Sharpen) Kind() string                               { return KindSharpen }
func (s Sharpen) HasEffect() bool                            { return s.Amount > 0 }
func (s Sharpen) HasEffectIn(geometry.Dimension, *List) bool { return s.HasEffect() }
func (s Sharpen) String() string                             { return "sharpen:" + num(s.Amount) }
