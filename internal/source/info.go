// Package source describes source images: their size, format, tile layout
// and orientation, and how to decode them at a reduced resolution.
//
// Info values are produced once per source by a Reader and shared read-only
// by everything that plans against that source. A reader that cannot
// determine every field marks the Info incomplete; consumers treat missing
// fields as absent rather than as errors.
package source

import (
	"fmt"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// Orientation is the clockwise rotation that displays a source upright.
type Orientation int

const (
	Rotate0   Orientation = 0
	Rotate90  Orientation = 90
	Rotate180 Orientation = 180
	Rotate270 Orientation = 270
)

// OrientationFromEXIF maps an EXIF Orientation tag value to a rotation.
// Only the unmirrored values 1, 3, 6 and 8 are accepted.
func OrientationFromEXIF(v int) (Orientation, error) {
	switch v {
	case 1:
		return Rotate0, nil
	case 3:
		return Rotate180, nil
	case 6:
		return Rotate90, nil
	case 8:
		return Rotate270, nil
	}
	return Rotate0, domain.Invalid("orientation.from_exif", fmt.Sprintf("unsupported EXIF orientation: %d", v))
}

// Degrees returns the rotation in degrees.
func (o Orientation) Degrees() int { return int(o) }

// IsIdentity reports whether no rotation is needed.
func (o Orientation) IsIdentity() bool { return o == Rotate0 }

// Adjust returns size as it appears after the rotation.
func (o Orientation) Adjust(size geometry.Dimension) geometry.Dimension {
	if o == Rotate90 || o == Rotate270 {
		return size.Swapped()
	}
	return size
}

// Info is the metadata of a source image.
type Info struct {
	// Size is the full stored size, before any orientation is applied.
	Size geometry.Dimension `json:"size"`

	Format format.Format `json:"format"`

	// TileSize is the native tile size, when the reader knows it.
	TileSize *geometry.Dimension `json:"tile_size,omitempty"`

	// Orientation is the embedded orientation, when the reader knows it.
	Orientation *Orientation `json:"orientation,omitempty"`

	// Complete is false when some metadata could not be determined.
	Complete bool `json:"complete"`
}

// OrientedSize is the size after applying Orientation.
func (i Info) OrientedSize() geometry.Dimension {
	if i.Orientation == nil {
		return i.Size
	}
	return i.Orientation.Adjust(i.Size)
}

// Validate checks that the size is usable.
func (i Info) Validate() error {
	if i.Size.IsEmpty() {
		return domain.Invalid("source_info.validate", "source size must be positive, got "+i.Size.String())
	}
	return nil
}
