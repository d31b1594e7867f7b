// Package native executes rendering plans in-process with pure Go image
// libraries. It needs no external binaries but reads no vector or JPEG 2000
// sources.
//
// Execution walks the plan's directives in order on a single in-memory
// image:
//
//	crop      imaging.Crop
//	resize    imaging.Resize with the mapped resample filter
//	flip      imaging.FlipH / imaging.FlipV
//	rotate    imaging.Rotate, filling with the background
//	gray      imaging.Grayscale
//	bitonal   bild segment.Threshold
//	sharpen   bild effect.UnsharpMask
//	composite imaging.Overlay at the gravity position
//
// Formats without an alpha channel are flattened onto the plan's background
// colour, or white, before encoding.
package native

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/webp"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
)

// Name identifies the backend in logs and metrics.
const Name = "native"

// Sharpen radius in pixels; the directive's amount sets the strength.
const unsharpRadius = 1.0

// Bitonal threshold on the 0-255 luminance scale.
const bitonalLevel = 128

var (
	sources = []format.Format{format.BMP, format.GIF, format.JPG, format.PNG, format.TIF, format.WEBP}
	outputs = []format.Format{format.BMP, format.GIF, format.JPG, format.PNG, format.TIF}
)

// Backend is the in-process renderer.
type Backend struct {
	caps   format.Capabilities
	logger *slog.Logger
}

// New returns a native backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{caps: format.NewCapabilities(sources, outputs), logger: logger}
}

// Name implements pipeline.Backend.
func (b *Backend) Name() string { return Name }

// Capabilities implements pipeline.Backend.
func (b *Backend) Capabilities() format.Capabilities { return b.caps }

// Execute implements pipeline.Backend by decoding in first.
func (b *Backend) Execute(ctx context.Context, p *plan.Plan, in io.Reader, out io.Writer) error {
	const op = "native.execute"

	img, name, err := image.Decode(in)
	if err != nil {
		return domain.Backend(err, op, "failed to decode source")
	}
	b.logger.Debug("decoded source", "codec", name, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return b.ExecuteImage(ctx, p, img, out)
}

// ExecuteImage implements pipeline.ImageBackend.
func (b *Backend) ExecuteImage(ctx context.Context, p *plan.Plan, img image.Image, out io.Writer) error {
	const op = "native.execute_image"

	r := &render{img: imaging.Clone(img), fill: color.White}
	for _, d := range p.Directives {
		if err := ctx.Err(); err != nil {
			return domain.Backend(err, op, "rendering cancelled")
		}
		if err := r.apply(d); err != nil {
			return domain.Backend(err, op, d.Kind()+" failed")
		}
	}
	if r.output == format.Unknown {
		return domain.Backend(fmt.Errorf("plan has no output directive"), op, "nothing to encode")
	}
	if !r.output.SupportsTransparency() {
		r.flatten()
	}
	if err := encode(out, r.img, r.output, r.encode); err != nil {
		return domain.Backend(err, op, "failed to encode "+r.output.String())
	}
	if r.encode.Interlace {
		b.logger.Debug("interlaced output is not supported; writing baseline", "format", r.output.String())
	}
	return nil
}

// render is the state of one plan execution.
type render struct {
	img         image.Image
	fill        color.Color
	transparent bool
	encode      plan.Encode
	output      format.Format
}

func (r *render) apply(d plan.Directive) error {
	switch v := d.(type) {
	case plan.Orient:
		r.img = orient(r.img, v.Degrees)

	case plan.Background:
		r.transparent = v.Transparent
		if v.Color != "" {
			c, err := colorful.Hex(v.Color)
			if err != nil {
				return err
			}
			r.fill = c
		}

	case plan.Crop:
		b := r.img.Bounds()
		rect := image.Rect(v.Rect.IntX(), v.Rect.IntY(),
			v.Rect.IntX()+v.Rect.IntWidth(), v.Rect.IntY()+v.Rect.IntHeight()).Add(b.Min)
		if rect.Intersect(b).Empty() {
			return fmt.Errorf("crop %s is outside the %dx%d image", v.Rect, b.Dx(), b.Dy())
		}
		r.img = imaging.Crop(r.img, rect)

	case plan.Resize:
		r.img = imaging.Resize(r.img, v.Size.Width, v.Size.Height, filterFor(v.Filter))

	case plan.Flip:
		if v.Axis == string(operation.TransposeVertical) {
			r.img = imaging.FlipV(r.img)
		} else {
			r.img = imaging.FlipH(r.img)
		}

	case plan.Rotate:
		// imaging rotates counter-clockwise
		r.img = imaging.Rotate(r.img, -v.Degrees, r.background())

	case plan.Colorspace:
		switch v.Transform {
		case string(operation.ColorGray):
			r.img = imaging.Grayscale(r.img)
		case string(operation.ColorBitonal):
			r.img = segment.Threshold(r.img, bitonalLevel)
		}

	case plan.Sharpen:
		r.img = effect.UnsharpMask(r.img, unsharpRadius, v.Amount)

	case plan.Composite:
		ov, err := imaging.Open(v.Path)
		if err != nil {
			return fmt.Errorf("overlay %s: %w", v.Ref, err)
		}
		r.img = imaging.Overlay(r.img, ov, position(r.img.Bounds(), ov.Bounds(), v), 1.0)

	case plan.Encode:
		r.encode = v

	case plan.Depth:
		if v.Bits != 8 {
			return fmt.Errorf("unsupported depth %d", v.Bits)
		}
		r.img = imaging.Clone(r.img)

	case plan.Output:
		r.output = v.Format
	}
	return nil
}

func (r *render) background() color.Color {
	if r.transparent {
		return color.Transparent
	}
	return r.fill
}

// flatten composites the image over the fill colour, dropping alpha.
func (r *render) flatten() {
	b := r.img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), r.fill)
	r.img = imaging.Overlay(bg, r.img, image.Pt(0, 0), 1.0)
}

// orient turns img clockwise by degrees, a multiple of 90.
func orient(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return img
}

// position places an overlay of size ov on an image of size dst. Offsets
// move the overlay inward from the edges named by the gravity.
func position(dst, ov image.Rectangle, c plan.Composite) image.Point {
	w, h := dst.Dx(), dst.Dy()
	ow, oh := ov.Dx(), ov.Dy()

	x := (w-ow)/2 + c.OffsetX
	switch c.Gravity {
	case plan.NorthWest, plan.West, plan.SouthWest:
		x = c.OffsetX
	case plan.NorthEast, plan.East, plan.SouthEast:
		x = w - ow - c.OffsetX
	}

	y := (h-oh)/2 + c.OffsetY
	switch c.Gravity {
	case plan.NorthWest, plan.North, plan.NorthEast:
		y = c.OffsetY
	case plan.SouthWest, plan.South, plan.SouthEast:
		y = h - oh - c.OffsetY
	}
	return image.Pt(x, y)
}

func filterFor(name string) imaging.ResampleFilter {
	switch operation.Filter(name) {
	case operation.FilterBell:
		return imaging.Hamming
	case operation.FilterBicubic:
		return imaging.CatmullRom
	case operation.FilterBox:
		return imaging.Box
	case operation.FilterBSpline:
		return imaging.BSpline
	case operation.FilterHermite:
		return imaging.Hermite
	case operation.FilterMitchell:
		return imaging.MitchellNetravali
	case operation.FilterTriangle:
		return imaging.Linear
	}
	return imaging.Lanczos
}
