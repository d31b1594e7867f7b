// Package format enumerates the image formats the pipeline can read or write
// and the capability tables backends publish for them.
package format

import (
	"encoding/json"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
)

// Format identifies an image encoding.
type Format string

const (
	Unknown Format = ""
	BMP     Format = "bmp"
	DCM     Format = "dcm"
	GIF     Format = "gif"
	JP2     Format = "jp2"
	JPG     Format = "jpg"
	PDF     Format = "pdf"
	PNG     Format = "png"
	TIF     Format = "tif"
	WEBP    Format = "webp"
)

type descriptor struct {
	extensions   []string
	mediaType    string
	transparency bool
	vector       bool
	paged        bool
}

var descriptors = map[Format]descriptor{
	BMP:  {extensions: []string{"bmp", "dib"}, mediaType: "image/bmp"},
	DCM:  {extensions: []string{"dcm", "dic"}, mediaType: "application/dicom"},
	GIF:  {extensions: []string{"gif"}, mediaType: "image/gif", transparency: true},
	JP2:  {extensions: []string{"jp2", "j2k", "jpx"}, mediaType: "image/jp2", transparency: true},
	JPG:  {extensions: []string{"jpg", "jpeg"}, mediaType: "image/jpeg"},
	PDF:  {extensions: []string{"pdf"}, mediaType: "application/pdf", vector: true, paged: true},
	PNG:  {extensions: []string{"png"}, mediaType: "image/png", transparency: true},
	TIF:  {extensions: []string{"tif", "tiff", "ptif"}, mediaType: "image/tiff", transparency: true},
	WEBP: {extensions: []string{"webp"}, mediaType: "image/webp", transparency: true},
}

// All returns every known format in a stable order.
func All() []Format {
	return []Format{BMP, DCM, GIF, JP2, JPG, PDF, PNG, TIF, WEBP}
}

// Parse resolves a format name, file extension (with or without the dot)
// or media type.
func Parse(s string) (Format, error) {
	const op = "format.parse"
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for f, d := range descriptors {
		if key == d.mediaType {
			return f, nil
		}
		for _, ext := range d.extensions {
			if key == ext {
				return f, nil
			}
		}
	}
	return Unknown, domain.Invalid(op, "unknown format: "+s)
}

// FromPath guesses the format from a file name's extension.
func FromPath(path string) Format {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return Unknown
	}
	f, err := Parse(path[i+1:])
	if err != nil {
		return Unknown
	}
	return f
}

// Extension returns the preferred file extension, without a dot.
func (f Format) Extension() string {
	if d, ok := descriptors[f]; ok {
		return d.extensions[0]
	}
	return "unknown"
}

// MediaType returns the IANA media type.
func (f Format) MediaType() string {
	if d, ok := descriptors[f]; ok {
		return d.mediaType
	}
	return "application/octet-stream"
}

// SupportsTransparency reports whether the format carries an alpha channel.
func (f Format) SupportsTransparency() bool {
	return descriptors[f].transparency
}

// IsVector reports whether the format must be rasterized before processing.
func (f Format) IsVector() bool {
	return descriptors[f].vector
}

// IsPaged reports whether a page option selects a frame of the source.
func (f Format) IsPaged() bool {
	return descriptors[f].paged
}

// IsKnown reports whether f is one of the enumerated formats.
func (f Format) IsKnown() bool {
	_, ok := descriptors[f]
	return ok
}

func (f Format) String() string {
	if f == Unknown {
		return "unknown"
	}
	return string(f)
}

// UnmarshalJSON accepts any spelling Parse accepts.
func (f *Format) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = Unknown
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
