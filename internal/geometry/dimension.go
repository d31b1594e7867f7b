package geometry

import (
	"fmt"
	"math"
)

// Round converts a fractional pixel value to an integer using round-half-up.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// Dimension is a size in whole pixels.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewDimension returns a Dimension of the given size.
func NewDimension(width, height int) Dimension {
	return Dimension{Width: width, Height: height}
}

// IsEmpty reports whether either axis is zero or negative.
func (d Dimension) IsEmpty() bool {
	return d.Width <= 0 || d.Height <= 0
}

// Swapped returns the dimension with width and height exchanged.
func (d Dimension) Swapped() Dimension {
	return Dimension{Width: d.Height, Height: d.Width}
}

// Scaled multiplies both axes by f, rounding each independently and
// clamping to at least one pixel.
func (d Dimension) Scaled(f float64) Dimension {
	return d.ScaledXY(f, f)
}

// ScaledXY multiplies each axis by its own factor.
func (d Dimension) ScaledXY(fx, fy float64) Dimension {
	return Dimension{
		Width:  atLeastOne(Round(float64(d.Width) * fx)),
		Height: atLeastOne(Round(float64(d.Height) * fy)),
	}
}

// Exceeds reports whether d is larger than other along either axis.
func (d Dimension) Exceeds(other Dimension) bool {
	return d.Width > other.Width || d.Height > other.Height
}

// String renders the dimension as "WxH".
func (d Dimension) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
