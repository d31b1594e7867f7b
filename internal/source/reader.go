package source

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

// Reader provides the metadata and pixels of one source image.
type Reader interface {
	// Info returns the source metadata.
	Info() (Info, error)

	// DecodeAt returns the pixels already reduced by rf. The returned image
	// is rf.Apply(Info().Size) in size.
	DecodeAt(rf geometry.ReductionFactor) (image.Image, error)
}

// FileReader reads a raster image from disk.
//
// Info is read from the image header only, so it is cheap. The standard
// codecs expose neither tile layout nor EXIF orientation, so the returned
// Info is marked incomplete and reports the full size as its tile size.
//
// DecodeAt decodes the whole image and then box-filters it down to the
// reduced size, which is what a reader without native pyramid levels can
// offer.
type FileReader struct {
	path string
}

// NewFileReader returns a reader for the image at path.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

// Path returns the file path.
func (r *FileReader) Path() string { return r.path }

// Info implements Reader.
func (r *FileReader) Info() (Info, error) {
	const op = "file_reader.info"

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, domain.NotFound(op, "image", r.path)
		}
		return Info{}, domain.Wrap(err, domain.EINVALID, op, "failed to open image")
	}
	defer f.Close()

	cfg, name, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, domain.Wrap(err, domain.EUNSUPPORTED, op, "failed to decode image header")
	}

	fmtName, err := format.Parse(name)
	if err != nil {
		fmtName = format.FromPath(r.path)
	}

	size := geometry.NewDimension(cfg.Width, cfg.Height)
	tile := size
	return Info{
		Size:     size,
		Format:   fmtName,
		TileSize: &tile,
		Complete: false,
	}, nil
}

// DecodeAt implements Reader.
func (r *FileReader) DecodeAt(rf geometry.ReductionFactor) (image.Image, error) {
	const op = "file_reader.decode"

	img, err := imaging.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFound(op, "image", r.path)
		}
		return nil, domain.Wrap(err, domain.EUNSUPPORTED, op, "failed to decode image")
	}
	if rf.Factor == 0 {
		return img, nil
	}

	b := img.Bounds()
	target := rf.Apply(geometry.NewDimension(b.Dx(), b.Dy()))
	return imaging.Resize(img, target.Width, target.Height, imaging.Box), nil
}

func (r *FileReader) String() string {
	return fmt.Sprintf("file:%s", r.path)
}
