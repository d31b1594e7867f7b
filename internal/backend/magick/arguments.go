package magick

import (
	"fmt"
	"strconv"

	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
)

// Arguments renders p as convert arguments, without the command itself.
// The source is read from stdin and the result written to stdout.
//
// Orientation is handled by -auto-orient, which reads the EXIF tag itself,
// so Orient directives produce no argument of their own.
func Arguments(p *plan.Plan) []string {
	args := make([]string, 0, 32)
	args = append(args, "-auto-orient")

	for _, d := range p.Directives {
		switch v := d.(type) {
		case plan.Density:
			args = append(args, "-density", formatFloat(v.DPI))

		case plan.Input:
			page := 0
			if v.Page != nil {
				page = *v.Page
			}
			args = append(args, fmt.Sprintf("%s:-[%d]", v.Format.Extension(), page))

		case plan.Background:
			if v.Transparent {
				args = append(args, "-background", "none")
			} else if v.Color != "" {
				args = append(args, "-background", v.Color)
			}

		case plan.Crop:
			args = append(args, "-crop", fmt.Sprintf("%dx%d+%d+%d",
				v.Rect.IntWidth(), v.Rect.IntHeight(), v.Rect.IntX(), v.Rect.IntY()))

		case plan.Resize:
			if f := filterName(v.Filter); f != "" {
				args = append(args, "-filter", f)
			}
			args = append(args, "-resize", resizeGeometry(v))

		case plan.Flip:
			if v.Axis == string(operation.TransposeVertical) {
				args = append(args, "-flip")
			} else {
				args = append(args, "-flop")
			}

		case plan.Rotate:
			args = append(args, "-rotate", formatFloat(v.Degrees))

		case plan.Colorspace:
			switch v.Transform {
			case string(operation.ColorGray):
				args = append(args, "-colorspace", "Gray")
			case string(operation.ColorBitonal):
				args = append(args, "-monochrome")
			}

		case plan.Sharpen:
			args = append(args, "-unsharp", formatFloat(v.Amount))

		case plan.Composite:
			args = append(args, v.Path,
				"-compose", "over",
				"-gravity", string(v.Gravity),
				"-geometry", offset(v.OffsetX)+offset(v.OffsetY),
				"-composite")

		case plan.Encode:
			args = append(args, encodeArguments(v)...)

		case plan.Depth:
			args = append(args, "-depth", strconv.Itoa(v.Bits))

		case plan.Output:
			args = append(args, v.Format.Extension()+":-")
		}
	}
	return args
}

func resizeGeometry(r plan.Resize) string {
	switch r.Mode {
	case plan.ResizeWidth:
		return fmt.Sprintf("%dx", r.Width)
	case plan.ResizeHeight:
		return fmt.Sprintf("x%d", r.Height)
	case plan.ResizeInside:
		return fmt.Sprintf("%dx%d", r.Width, r.Height)
	case plan.ResizeFill:
		return fmt.Sprintf("%dx%d!", r.Width, r.Height)
	}
	return formatFloat(r.Factor*100) + "%"
}

func encodeArguments(e plan.Encode) []string {
	switch e.Format {
	case format.JPG:
		args := []string{"-quality", fmt.Sprintf("%d%%", e.Quality)}
		if e.Interlace {
			args = append(args, "-interlace", "Plane")
		}
		return args
	case format.TIF:
		return []string{"-compress", compression(e.Compression)}
	}
	return nil
}

// filterName maps a resample filter to convert's -filter name. See
// https://imagemagick.org/Usage/filter/.
func filterName(filter string) string {
	switch filter {
	case string(operation.FilterBell):
		return "hamming"
	case string(operation.FilterBicubic):
		return "catrom"
	case string(operation.FilterBox):
		return "box"
	case string(operation.FilterBSpline):
		return "spline"
	case string(operation.FilterHermite):
		return "hermite"
	case string(operation.FilterLanczos3):
		return "lanczos"
	case string(operation.FilterMitchell):
		return "mitchell"
	case string(operation.FilterTriangle):
		return "triangle"
	}
	return ""
}

func compression(c string) string {
	switch c {
	case string(operation.CompressionLZW):
		return "LZW"
	case string(operation.CompressionDeflate):
		return "Zip"
	case string(operation.CompressionJPEG):
		return "JPEG"
	case string(operation.CompressionRLE):
		return "RLE"
	}
	return "None"
}

func offset(n int) string {
	if n > -1 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
