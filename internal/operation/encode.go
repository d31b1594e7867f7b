package operation

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// DefaultQuality is the encode quality when none is given.
const DefaultQuality = 80

// Compression selects a lossless or lossy codec for formats that offer a
// choice, currently TIFF.
type Compression string

const (
	CompressionUndefined Compression = ""
	CompressionDeflate   Compression = "deflate"
	CompressionJPEG      Compression = "jpeg"
	CompressionLZW       Compression = "lzw"
	CompressionNone      Compression = "none"
	CompressionRLE       Compression = "rle"
)

// ParseCompression resolves a compression name.
func ParseCompression(s string) (Compression, error) {
	c := Compression(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CompressionUndefined, CompressionDeflate, CompressionJPEG,
		CompressionLZW, CompressionNone, CompressionRLE:
		return c, nil
	}
	return CompressionUndefined, domain.Invalid("encode.parse_compression", "unknown compression: "+s)
}

// Encode is the terminal step naming the output format and its options.
type Encode struct {
	format      format.Format
	quality     int
	compression Compression
	interlace   bool
	background  *colorful.Color
	frozen      bool
}

// NewEncode returns an encode step for f with default options.
func NewEncode(f format.Format) *Encode {
	return &Encode{format: f, quality: DefaultQuality}
}

func (e *Encode) operation() {}

// Kind implements Operation.
func (e *Encode) Kind() string { return KindEncode }

func (e *Encode) Format() format.Format    { return e.format }
func (e *Encode) Quality() int             { return e.quality }
func (e *Encode) Compression() Compression { return e.compression }
func (e *Encode) Interlace() bool          { return e.interlace }

// Background returns the fill colour used when the output has no alpha
// channel, and whether one was set.
func (e *Encode) Background() (colorful.Color, bool) {
	if e.background == nil {
		return colorful.Color{}, false
	}
	return *e.background, true
}

// BackgroundHex returns the background as "#rrggbb", or "" when unset.
func (e *Encode) BackgroundHex() string {
	if e.background == nil {
		return ""
	}
	return e.background.Hex()
}

// IsFrozen implements Freezable.
func (e *Encode) IsFrozen() bool { return e.frozen }

// SetFormat sets the output format.
func (e *Encode) SetFormat(f format.Format) error {
	const op = "encode.set_format"
	if e.frozen {
		return domain.Frozen(op)
	}
	if !f.IsKnown() {
		return domain.Invalid(op, "unknown output format: "+f.String())
	}
	e.format = f
	return nil
}

// SetQuality sets the lossy quality in [1, 100].
func (e *Encode) SetQuality(q int) error {
	const op = "encode.set_quality"
	if e.frozen {
		return domain.Frozen(op)
	}
	if q < 1 || q > 100 {
		return domain.Invalid(op, "Quality must be between 1 and 100")
	}
	e.quality = q
	return nil
}

// SetCompression sets the compression.
func (e *Encode) SetCompression(c Compression) error {
	const op = "encode.set_compression"
	if e.frozen {
		return domain.Frozen(op)
	}
	if _, err := ParseCompression(string(c)); err != nil {
		return domain.Invalid(op, "unknown compression: "+string(c))
	}
	e.compression = c
	return nil
}

// SetInterlace enables progressive or interlaced output.
func (e *Encode) SetInterlace(on bool) error {
	if e.frozen {
		return domain.Frozen("encode.set_interlace")
	}
	e.interlace = on
	return nil
}

// SetBackground parses a "#rgb" or "#rrggbb" colour. The leading hash is
// optional.
func (e *Encode) SetBackground(hex string) error {
	const op = "encode.set_background"
	if e.frozen {
		return domain.Frozen(op)
	}
	c, err := ParseColor(hex)
	if err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "invalid background color "+hex)
	}
	e.background = &c
	return nil
}

// ParseColor parses a hex colour with or without its leading hash.
func ParseColor(hex string) (colorful.Color, error) {
	s := strings.TrimSpace(hex)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return colorful.Hex(s)
}

// Validate checks the format.
func (e *Encode) Validate() error {
	if !e.format.IsKnown() {
		return domain.Invalid("encode.validate", "Output format is required")
	}
	return nil
}

// Freeze validates the encode step and makes it immutable.
func (e *Encode) Freeze() error {
	if e.frozen {
		return nil
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.frozen = true
	return nil
}

// HasEffect is always true.
func (e *Encode) HasEffect() bool { return true }

// HasEffectIn is always true.
func (e *Encode) HasEffectIn(geometry.Dimension, *List) bool { return true }

func (e *Encode) String() string {
	s := fmt.Sprintf("%s_%d", e.format, e.quality)
	if e.compression != CompressionUndefined {
		s += "_" + string(e.compression)
	}
	if e.interlace {
		s += "_interlace"
	}
	if e.background != nil {
		s += "_" + strings.TrimPrefix(e.background.Hex(), "#")
	}
	return s
}
