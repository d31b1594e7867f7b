package geometry

import "fmt"

// Rectangle is a region in fractional pixel coordinates. The origin is the
// top-left corner; X grows rightward and Y downward.
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullRectangle returns a rectangle covering the whole of size.
func FullRectangle(size Dimension) Rectangle {
	return Rectangle{Width: float64(size.Width), Height: float64(size.Height)}
}

func (r Rectangle) IntX() int      { return Round(r.X) }
func (r Rectangle) IntY() int      { return Round(r.Y) }
func (r Rectangle) IntWidth() int  { return Round(r.Width) }
func (r Rectangle) IntHeight() int { return Round(r.Height) }

// Size returns the rounded size of the rectangle.
func (r Rectangle) Size() Dimension {
	return Dimension{Width: r.IntWidth(), Height: r.IntHeight()}
}

// Scaled multiplies position and size by f.
func (r Rectangle) Scaled(f float64) Rectangle {
	return Rectangle{X: r.X * f, Y: r.Y * f, Width: r.Width * f, Height: r.Height * f}
}

// ClippedTo intersects the rectangle with the bounds of size. The result
// may be empty when the rectangle lies entirely outside.
func (r Rectangle) ClippedTo(size Dimension) Rectangle {
	x0, y0 := maxf(r.X, 0), maxf(r.Y, 0)
	x1 := minf(r.X+r.Width, float64(size.Width))
	y1 := minf(r.Y+r.Height, float64(size.Height))
	return Rectangle{X: x0, Y: y0, Width: maxf(x1-x0, 0), Height: maxf(y1-y0, 0)}
}

// IsEmpty reports whether the rounded rectangle covers no pixels.
func (r Rectangle) IsEmpty() bool {
	return r.IntWidth() <= 0 || r.IntHeight() <= 0
}

// Covers reports whether the rounded rectangle spans all of size.
func (r Rectangle) Covers(size Dimension) bool {
	return r.IntX() == 0 && r.IntY() == 0 &&
		r.IntWidth() == size.Width && r.IntHeight() == size.Height
}

// String renders the rectangle in ImageMagick geometry form "WxH+X+Y".
func (r Rectangle) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.IntWidth(), r.IntHeight(), r.IntX(), r.IntY())
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
