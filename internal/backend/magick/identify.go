package magick

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/source"
)

// listPrefixes maps the leading token of an "identify -list format" line to
// a format. Order matters: the first matching prefix wins.
var listPrefixes = []struct {
	prefix string
	format format.Format
}{
	{"BMP", format.BMP},
	{"DCM", format.DCM},
	{"GIF", format.GIF},
	{"JP2", format.JP2},
	{"JPEG", format.JPG},
	{"PDF", format.PDF},
	{"PNG", format.PNG},
	{"TIFF", format.TIF},
	{"WEBP", format.WEBP},
}

// ParseFormatList reads the output of "identify -list format". A listed
// format is a source; one whose mode includes "rw" is also an output. PDF is
// only ever a source, and only when readable.
func ParseFormatList(r io.Reader) format.Capabilities {
	sources := map[format.Format]bool{}
	outputs := map[format.Format]bool{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, p := range listPrefixes {
			if !strings.HasPrefix(line, p.prefix) {
				continue
			}
			if p.format == format.PDF {
				if strings.Contains(line, "  r") {
					sources[format.PDF] = true
				}
				break
			}
			sources[p.format] = true
			if strings.Contains(line, " rw") {
				outputs[p.format] = true
			}
			break
		}
	}
	return format.NewCapabilities(keys(sources), keys(outputs))
}

func keys(set map[format.Format]bool) []format.Format {
	out := make([]format.Format, 0, len(set))
	for _, f := range format.All() {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}

// infoFormat asks identify for width, height and EXIF orientation on three
// lines. The glob suppresses the unknown-property warning for images without
// an Orientation tag.
const infoFormat = "%w\n%h\n%[EXIF:*Orientation]"

var nonDigits = regexp.MustCompile(`[^\d+]`)

// ReadInfo identifies the source read from r, which is in format f. Tile
// size is reported as the full size and the Info is marked incomplete.
func (b *Backend) ReadInfo(ctx context.Context, f format.Format, r io.Reader) (source.Info, error) {
	const op = "magick.read_info"

	b.mu.Lock()
	cmd := b.identifyLocked()
	b.mu.Unlock()
	if cmd == nil {
		return source.Info{}, domain.Backend(fmt.Errorf("no ImageMagick binary found"), op, "ImageMagick is not installed")
	}
	args := append(cmd[1:], "-ping", "-format", infoFormat, f.Extension()+":-")

	var stdout bytes.Buffer
	b.logger.Debug("invoking identify", "command", strings.ReplaceAll(strings.Join(append(cmd[:1:1], args...), " "), "\n", ","))
	if err := b.run(ctx, cmd[0], args, r, &stdout); err != nil {
		return source.Info{}, domain.Backend(err, op, "identify failed")
	}
	return ParseInfo(stdout.String(), f)
}

// ParseInfo parses identify output produced with infoFormat. An orientation
// that cannot be parsed or is not a plain rotation is ignored.
func ParseInfo(out string, f format.Format) (source.Info, error) {
	const op = "magick.parse_info"

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) == "" {
		return source.Info{}, domain.Backend(fmt.Errorf("nothing received on stdout"), op, "identify returned no info")
	}
	w, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return source.Info{}, domain.Backend(err, op, "invalid width from identify")
	}
	h, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return source.Info{}, domain.Backend(err, op, "invalid height from identify")
	}

	size := geometry.NewDimension(w, h)
	info := source.Info{Size: size, Format: f, TileSize: &size}

	if len(lines) > 2 {
		if v, err := strconv.Atoi(nonDigits.ReplaceAllString(lines[2], "")); err == nil {
			if o, err := source.OrientationFromEXIF(v); err == nil {
				info.Orientation = &o
			}
		}
	}
	return info, nil
}
