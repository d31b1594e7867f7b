package native

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
)

func encode(w io.Writer, img image.Image, f format.Format, opts plan.Encode) error {
	switch f {
	case format.JPG:
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = operation.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case format.PNG:
		return png.Encode(w, img)
	case format.GIF:
		return gif.Encode(w, img, nil)
	case format.TIF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiffCompression(opts.Compression)})
	case format.BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("cannot encode %s", f)
}

// tiffCompression maps a compression name to the codecs x/image/tiff can
// write, which are deflate and none. LZW is written as deflate, the other
// lossless codec; JPEG and RLE fall back to none.
func tiffCompression(c string) tiff.CompressionType {
	switch operation.Compression(c) {
	case operation.CompressionLZW, operation.CompressionDeflate:
		return tiff.Deflate
	}
	return tiff.Uncompressed
}
