package server

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
)

// pipelineArgs are the arguments shared by image_plan and image_render.
type pipelineArgs struct {
	Path       string          `json:"path"`
	Operations []operationArgs `json:"operations"`

	// Output encoding.
	Format      string `json:"format"`
	Quality     int    `json:"quality"`
	Compression string `json:"compression"`
	Interlace   bool   `json:"interlace"`
	Background  string `json:"background"`

	// Page is 1-based; zero means the first page.
	Page int `json:"page"`

	ScaleConstraint *constraintArgs `json:"scale_constraint"`
}

type constraintArgs struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// operationArgs is one entry of the operations array. Which fields apply
// depends on Type.
type operationArgs struct {
	Type string `json:"type"`

	// crop
	Shape  string  `json:"shape"`
	Unit   string  `json:"unit"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// scale (Width and Height are shared with crop)
	Mode    string  `json:"mode"`
	Percent float64 `json:"percent"`
	Filter  string  `json:"filter"`

	// transpose
	Axis string `json:"axis"`

	// rotate
	Degrees float64 `json:"degrees"`

	// color
	Transform string `json:"transform"`

	// sharpen
	Amount float64 `json:"amount"`

	// overlay
	URI      string `json:"uri"`
	Data     string `json:"data"`
	Position string `json:"position"`
	Inset    int    `json:"inset"`
}

// buildList turns tool arguments into a frozen operation list. The Encode
// is always appended last.
func buildList(a *pipelineArgs) (*operation.List, error) {
	const op = "server.build_list"

	l, err := operation.NewList()
	if err != nil {
		return nil, err
	}
	for i, oa := range a.Operations {
		o, err := oa.operation()
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		if err := l.Add(o); err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
	}

	enc, err := a.encode()
	if err != nil {
		return nil, err
	}
	if err := l.Add(enc); err != nil {
		return nil, err
	}

	if c := a.ScaleConstraint; c != nil {
		sc, err := geometry.NewScaleConstraint(c.Numerator, c.Denominator)
		if err != nil {
			return nil, err
		}
		if err := l.SetScaleConstraint(sc); err != nil {
			return nil, err
		}
	}
	if a.Page != 0 {
		if a.Page < 0 {
			return nil, domain.Invalid(op, "page must be positive")
		}
		if err := l.SetOption(operation.OptionPage, strconv.Itoa(a.Page)); err != nil {
			return nil, err
		}
	}

	if err := l.Freeze(); err != nil {
		return nil, err
	}
	return l, nil
}

func (a *pipelineArgs) encode() (*operation.Encode, error) {
	name := a.Format
	if name == "" {
		name = "png"
	}
	f, err := format.Parse(name)
	if err != nil {
		return nil, err
	}

	enc := operation.NewEncode(f)
	if a.Quality != 0 {
		if err := enc.SetQuality(a.Quality); err != nil {
			return nil, err
		}
	}
	if a.Compression != "" {
		c, err := operation.ParseCompression(a.Compression)
		if err != nil {
			return nil, err
		}
		if err := enc.SetCompression(c); err != nil {
			return nil, err
		}
	}
	if a.Interlace {
		if err := enc.SetInterlace(true); err != nil {
			return nil, err
		}
	}
	if a.Background != "" {
		if err := enc.SetBackground(a.Background); err != nil {
			return nil, err
		}
	}
	return enc, nil
}

func (oa operationArgs) operation() (operation.Operation, error) {
	const op = "server.parse_operation"

	switch strings.ToLower(oa.Type) {
	case "crop":
		return oa.crop()
	case "scale":
		return oa.scale()
	case "transpose":
		return operation.ParseTranspose(oa.Axis)
	case "rotate":
		return operation.NewRotate(oa.Degrees)
	case "color":
		return operation.ParseColorTransform(oa.Transform)
	case "sharpen":
		return operation.NewSharpen(oa.Amount)
	case "overlay":
		return oa.overlay()
	case "":
		return nil, domain.Invalid(op, "operation type is required")
	}
	return nil, domain.Invalid(op, "unknown operation type: "+oa.Type)
}

func (oa operationArgs) crop() (operation.Operation, error) {
	const op = "server.parse_crop"

	switch strings.ToLower(oa.Shape) {
	case "full":
		return operation.NewFullCrop(), nil
	case "square":
		return operation.NewSquareCrop(), nil
	case "", "region":
	default:
		return nil, domain.Invalid(op, "unknown crop shape: "+oa.Shape)
	}

	switch strings.ToLower(oa.Unit) {
	case "percent":
		return operation.NewPercentCrop(oa.X, oa.Y, oa.Width, oa.Height), nil
	case "", "pixels":
		return operation.NewCrop(pixel(oa.X), pixel(oa.Y), pixel(oa.Width), pixel(oa.Height)), nil
	}
	return nil, domain.Invalid(op, "unknown crop unit: "+oa.Unit)
}

func (oa operationArgs) scale() (operation.Operation, error) {
	var (
		s   *operation.Scale
		err error
	)
	switch {
	case oa.Percent != 0:
		s, err = operation.NewScaleByPercent(oa.Percent)
	case oa.Mode == "" || strings.EqualFold(oa.Mode, string(operation.ScaleFull)):
		s = operation.NewScale()
	default:
		var mode operation.ScaleMode
		if mode, err = operation.ParseScaleMode(oa.Mode); err == nil {
			s, err = operation.NewScaleByPixels(pixel(oa.Width), pixel(oa.Height), mode)
		}
	}
	if err != nil {
		return nil, err
	}

	if oa.Filter != "" {
		f, err := operation.ParseFilter(oa.Filter)
		if err != nil {
			return nil, err
		}
		if err := s.SetFilter(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (oa operationArgs) overlay() (operation.Operation, error) {
	const op = "server.parse_overlay"

	pos := operation.BottomRight
	if oa.Position != "" {
		p, err := operation.ParsePosition(oa.Position)
		if err != nil {
			return nil, err
		}
		pos = p
	}

	if oa.Data != "" {
		data, err := base64.StdEncoding.DecodeString(oa.Data)
		if err != nil {
			return nil, domain.Wrap(err, domain.EINVALID, op, "overlay data is not valid base64")
		}
		return operation.NewInlineOverlay(data, pos, oa.Inset)
	}
	return operation.NewOverlay(oa.URI, pos, oa.Inset)
}

func pixel(v float64) int {
	return int(math.Round(v))
}
