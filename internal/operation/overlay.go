package operation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// Position anchors an overlay within the image.
type Position string

const (
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	TopRight     Position = "top-right"
	LeftCenter   Position = "left-center"
	Center       Position = "center"
	RightCenter  Position = "right-center"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
	BottomRight  Position = "bottom-right"
)

// Positions lists every anchor.
func Positions() []Position {
	return []Position{TopLeft, TopCenter, TopRight, LeftCenter, Center,
		RightCenter, BottomLeft, BottomCenter, BottomRight}
}

// ParsePosition resolves an anchor name. Underscores and spaces are
// accepted in place of hyphens.
func ParsePosition(s string) (Position, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for _, p := range Positions() {
		if Position(norm) == p {
			return p, nil
		}
	}
	return "", domain.Invalid("overlay.parse_position", "unknown overlay position: "+s)
}

// IsCorner reports whether the anchor is one of the four corners.
func (p Position) IsCorner() bool {
	switch p {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return true
	}
	return false
}

// Overlay composites another image on top of the output.
//
// The image is referenced either by URI (file, http, https or s3) or by
// inline bytes. Ref identifies the image for caching: the URI, or the
// SHA-256 digest of the bytes.
type Overlay struct {
	position Position
	inset    int
	uri      string
	data     []byte
	digest   string
	frozen   bool
}

// NewOverlay returns an overlay of the image at uri.
func NewOverlay(uri string, position Position, inset int) (*Overlay, error) {
	o := &Overlay{position: position}
	if err := o.SetURI(uri); err != nil {
		return nil, err
	}
	if err := o.SetInset(inset); err != nil {
		return nil, err
	}
	return o, nil
}

// NewInlineOverlay returns an overlay of an image held in memory.
func NewInlineOverlay(data []byte, position Position, inset int) (*Overlay, error) {
	o := &Overlay{position: position}
	if err := o.SetData(data); err != nil {
		return nil, err
	}
	if err := o.SetInset(inset); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Overlay) operation() {}

// Kind implements Operation.
func (o *Overlay) Kind() string { return KindOverlay }

func (o *Overlay) Position() Position { return o.position }
func (o *Overlay) Inset() int         { return o.inset }
func (o *Overlay) URI() string        { return o.uri }

// Data returns the inline image bytes, nil for URI overlays.
func (o *Overlay) Data() []byte { return o.data }

// Ref returns the cache key for the overlay image.
func (o *Overlay) Ref() string {
	if o.uri != "" {
		return o.uri
	}
	return "sha256:" + o.digest
}

// IsFrozen implements Freezable.
func (o *Overlay) IsFrozen() bool { return o.frozen }

// SetURI references an image by URI and drops any inline bytes.
func (o *Overlay) SetURI(uri string) error {
	const op = "overlay.set_uri"
	if o.frozen {
		return domain.Frozen(op)
	}
	if strings.TrimSpace(uri) == "" {
		return domain.Invalid(op, "Overlay URI must not be empty")
	}
	o.uri = uri
	o.data, o.digest = nil, ""
	return nil
}

// SetData references inline image bytes and drops any URI.
func (o *Overlay) SetData(data []byte) error {
	const op = "overlay.set_data"
	if o.frozen {
		return domain.Frozen(op)
	}
	if len(data) == 0 {
		return domain.Invalid(op, "Overlay data must not be empty")
	}
	sum := sha256.Sum256(data)
	o.data = data
	o.digest = hex.EncodeToString(sum[:])
	o.uri = ""
	return nil
}

// SetPosition sets the anchor.
func (o *Overlay) SetPosition(p Position) error {
	const op = "overlay.set_position"
	if o.frozen {
		return domain.Frozen(op)
	}
	if _, err := ParsePosition(string(p)); err != nil {
		return domain.Invalid(op, "unknown overlay position: "+string(p))
	}
	o.position = p
	return nil
}

// SetInset sets the distance in pixels from the anchored edges.
func (o *Overlay) SetInset(inset int) error {
	const op = "overlay.set_inset"
	if o.frozen {
		return domain.Frozen(op)
	}
	if inset < 0 {
		return domain.Invalid(op, "Inset must be a positive integer")
	}
	o.inset = inset
	return nil
}

// Validate checks that a position and an image are set.
func (o *Overlay) Validate() error {
	const op = "overlay.validate"
	if _, err := ParsePosition(string(o.position)); err != nil {
		return domain.Invalid(op, "Overlay position is required")
	}
	if o.uri == "" && len(o.data) == 0 {
		return domain.Invalid(op, "Overlay source is not set")
	}
	return nil
}

// Freeze validates the overlay and makes it immutable.
func (o *Overlay) Freeze() error {
	if o.frozen {
		return nil
	}
	if err := o.Validate(); err != nil {
		return err
	}
	o.frozen = true
	return nil
}

// HasEffect is always true.
func (o *Overlay) HasEffect() bool { return true }

// HasEffectIn is always true.
func (o *Overlay) HasEffectIn(geometry.Dimension, *List) bool { return true }

func (o *Overlay) String() string {
	return fmt.Sprintf("overlay:%s_%s_%d", o.Ref(), o.position, o.inset)
}
