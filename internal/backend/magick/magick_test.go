package magick

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
	"github.com/ironsheep/image-pipeline-mcp/internal/source"
)

const formatList = `   Format  Module    Mode  Description
-------------------------------------------------------------------------------
      BMP* BMP       rw-   Microsoft Windows bitmap image
      GIF* GIF       rw+   CompuServe graphics interchange format
      JP2* JP2       rw-   JPEG-2000 File Format Syntax
     JPEG* JPEG      rw-   Joint Photographic Experts Group JFIF format (libjpeg-turbo 2.1.2)
      PDF  PDF       r--   Portable Document Format
      PNG* PNG       rw-   Portable Network Graphics (libpng 1.6.37)
     TIFF* TIFF      rw+   Tagged Image File Format (LIBTIFF, Version 4.3.0)
     WEBP* WEBP      r--   WebP Image Format (libwebp 1.2.2 [0209])
`

type call struct {
	name string
	args []string
}

// fakeTools stands in for the ImageMagick binaries.
type fakeTools struct {
	installed map[string]bool
	stdout    string
	err       error
	calls     []call
	stdin     string
}

func (f *fakeTools) lookPath(name string) (string, error) {
	if f.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeTools) run(_ context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	f.calls = append(f.calls, call{name: name, args: args})
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		f.stdin = string(data)
	}
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(stdout, f.stdout)
	return err
}

func newFakeBackend(searchPath string, tools *fakeTools) *Backend {
	b := New(searchPath, nil)
	b.lookPath = tools.lookPath
	b.run = tools.run
	return b
}

func intPtr(v int) *int { return &v }

func TestArguments(t *testing.T) {
	p := &plan.Plan{}
	p.Add(plan.Density{DPI: 75})
	p.Add(plan.Input{Format: format.PDF, Page: intPtr(2)})
	p.Add(plan.Background{Color: "#ffffff"})
	p.Add(plan.Crop{Rect: geometry.Rectangle{X: 10, Y: 20, Width: 300, Height: 200}})
	p.Add(plan.Resize{Mode: plan.ResizeFactor, Factor: 0.5, Filter: "lanczos3"})
	p.Add(plan.Flip{Axis: "horizontal"})
	p.Add(plan.Rotate{Degrees: 90})
	p.Add(plan.Colorspace{Transform: "gray"})
	p.Add(plan.Sharpen{Amount: 0.5})
	p.Add(plan.Composite{Path: "/tmp/logo.png", Gravity: plan.NorthWest, OffsetX: 4, OffsetY: 4})
	p.Add(plan.Encode{Format: format.JPG, Quality: 80, Interlace: true})
	p.Add(plan.Depth{Bits: 8})
	p.Add(plan.Output{Format: format.JPG})

	want := []string{
		"-auto-orient",
		"-density", "75",
		"pdf:-[2]",
		"-background", "#ffffff",
		"-crop", "300x200+10+20",
		"-filter", "lanczos",
		"-resize", "50%",
		"-flop",
		"-rotate", "90",
		"-colorspace", "Gray",
		"-unsharp", "0.5",
		"/tmp/logo.png", "-compose", "over", "-gravity", "northwest", "-geometry", "+4+4", "-composite",
		"-quality", "80%",
		"-interlace", "Plane",
		"-depth", "8",
		"jpg:-",
	}
	if got := Arguments(p); !reflect.DeepEqual(got, want) {
		t.Errorf("Arguments() =\n%v\nwant\n%v", got, want)
	}
}

func TestArguments_Minimal(t *testing.T) {
	p := &plan.Plan{}
	p.Add(plan.Input{Format: format.PNG})
	p.Add(plan.Orient{Degrees: 90})
	p.Add(plan.Background{Transparent: true})
	p.Add(plan.Flip{Axis: "vertical"})
	p.Add(plan.Colorspace{Transform: "bitonal"})
	p.Add(plan.Encode{Format: format.PNG})
	p.Add(plan.Depth{Bits: 8})
	p.Add(plan.Output{Format: format.PNG})

	want := []string{"-auto-orient", "png:-[0]", "-background", "none", "-flip", "-monochrome", "-depth", "8", "png:-"}
	if got := Arguments(p); !reflect.DeepEqual(got, want) {
		t.Errorf("Arguments() = %v, want %v", got, want)
	}
}

func TestResizeGeometry(t *testing.T) {
	tests := []struct {
		name   string
		resize plan.Resize
		want   string
	}{
		{"factor", plan.Resize{Mode: plan.ResizeFactor, Factor: 0.25}, "25%"},
		{"fractional factor", plan.Resize{Mode: plan.ResizeFactor, Factor: 0.125}, "12.5%"},
		{"width", plan.Resize{Mode: plan.ResizeWidth, Width: 300}, "300x"},
		{"height", plan.Resize{Mode: plan.ResizeHeight, Height: 200}, "x200"},
		{"inside", plan.Resize{Mode: plan.ResizeInside, Width: 300, Height: 200}, "300x200"},
		{"fill", plan.Resize{Mode: plan.ResizeFill, Width: 300, Height: 200}, "300x200!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resizeGeometry(tt.resize); got != tt.want {
				t.Errorf("resizeGeometry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterName(t *testing.T) {
	tests := map[operation.Filter]string{
		operation.FilterBell:     "hamming",
		operation.FilterBicubic:  "catrom",
		operation.FilterBox:      "box",
		operation.FilterBSpline:  "spline",
		operation.FilterHermite:  "hermite",
		operation.FilterLanczos3: "lanczos",
		operation.FilterMitchell: "mitchell",
		operation.FilterTriangle: "triangle",
		operation.FilterNone:     "",
	}
	for filter, want := range tests {
		if got := filterName(string(filter)); got != want {
			t.Errorf("filterName(%q) = %q, want %q", filter, got, want)
		}
	}
}

func TestEncodeArguments_TIFF(t *testing.T) {
	tests := map[operation.Compression]string{
		operation.CompressionLZW:       "LZW",
		operation.CompressionDeflate:   "Zip",
		operation.CompressionJPEG:      "JPEG",
		operation.CompressionRLE:       "RLE",
		operation.CompressionNone:      "None",
		operation.CompressionUndefined: "None",
	}
	for c, want := range tests {
		got := encodeArguments(plan.Encode{Format: format.TIF, Compression: string(c)})
		if !reflect.DeepEqual(got, []string{"-compress", want}) {
			t.Errorf("compression %q: got %v, want -compress %s", c, got, want)
		}
	}

	if got := encodeArguments(plan.Encode{Format: format.PNG, Quality: 90}); got != nil {
		t.Errorf("png encode produced %v", got)
	}
}

func TestOffset(t *testing.T) {
	if got := offset(0) + offset(-3); got != "+0-3" {
		t.Errorf("offset = %q, want +0-3", got)
	}
}

func TestArguments_TranslatedPDF(t *testing.T) {
	l, err := operation.NewList(operation.NewEncode(format.PNG))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.SetOption(operation.OptionPage, "3"); err != nil {
		t.Fatal(err)
	}
	if err := l.Freeze(); err != nil {
		t.Fatal(err)
	}
	info := source.Info{Size: geometry.NewDimension(612, 792), Format: format.PDF}

	p, err := pipeline.Translate(l, info, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	args := Arguments(p)

	want := []string{"-auto-orient", "-density", "150", "pdf:-[2]", "-background", "none", "-depth", "8", "png:-"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("Arguments() = %v, want %v", args, want)
	}
}

func TestParseFormatList(t *testing.T) {
	caps := ParseFormatList(strings.NewReader(formatList))

	wantSources := []format.Format{format.BMP, format.GIF, format.JP2, format.JPG, format.PDF, format.PNG, format.TIF, format.WEBP}
	if got := caps.Sources(); !reflect.DeepEqual(got, sortedFormats(wantSources)) {
		t.Errorf("Sources() = %v, want %v", got, wantSources)
	}

	wantOutputs := sortedFormats([]format.Format{format.BMP, format.GIF, format.JP2, format.JPG, format.PNG, format.TIF})
	for _, src := range caps.Sources() {
		if got := caps.Outputs(src); !reflect.DeepEqual(got, wantOutputs) {
			t.Errorf("Outputs(%s) = %v, want %v", src, got, wantOutputs)
		}
	}
	if caps.CanRead(format.DCM) {
		t.Error("DCM should not be readable")
	}
	if caps.Supports(format.JPG, format.WEBP) {
		t.Error("read-only WEBP should not be an output")
	}
}

func TestParseFormatList_UnreadablePDF(t *testing.T) {
	caps := ParseFormatList(strings.NewReader("      PDF  PDF       -w-   Portable Document Format\n"))
	if caps.CanRead(format.PDF) {
		t.Error("write-only PDF should not be a source")
	}
}

func sortedFormats(in []format.Format) []format.Format {
	return format.NewCapabilities(in, nil).Sources()
}

func TestParseInfo(t *testing.T) {
	t.Run("with orientation", func(t *testing.T) {
		info, err := ParseInfo("640\n480\n6\n", format.JPG)
		if err != nil {
			t.Fatalf("ParseInfo() error = %v", err)
		}
		if info.Size != geometry.NewDimension(640, 480) {
			t.Errorf("Size = %v", info.Size)
		}
		if info.TileSize == nil || *info.TileSize != info.Size {
			t.Errorf("TileSize = %v, want full size", info.TileSize)
		}
		if info.Orientation == nil || *info.Orientation != source.Rotate90 {
			t.Errorf("Orientation = %v, want 90", info.Orientation)
		}
		if info.Complete {
			t.Error("info should be incomplete")
		}
		if info.OrientedSize() != geometry.NewDimension(480, 640) {
			t.Errorf("OrientedSize = %v", info.OrientedSize())
		}
	})

	t.Run("without orientation", func(t *testing.T) {
		info, err := ParseInfo("640\n480\n", format.PNG)
		if err != nil {
			t.Fatalf("ParseInfo() error = %v", err)
		}
		if info.Orientation != nil {
			t.Errorf("Orientation = %v, want nil", *info.Orientation)
		}
	})

	t.Run("mirrored orientation ignored", func(t *testing.T) {
		info, err := ParseInfo("640\n480\n2", format.JPG)
		if err != nil {
			t.Fatalf("ParseInfo() error = %v", err)
		}
		if info.Orientation != nil {
			t.Errorf("Orientation = %v, want nil", *info.Orientation)
		}
	})

	for _, out := range []string{"", "abc\n10\n", "10\n"} {
		if _, err := ParseInfo(out, format.JPG); domain.ErrorCode(err) != domain.EBACKEND {
			t.Errorf("ParseInfo(%q) code = %q, want %q", out, domain.ErrorCode(err), domain.EBACKEND)
		}
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name      string
		installed map[string]bool
		want      Version
		convert   []string
		warnings  int
	}{
		{"7", map[string]bool{"magick": true, "identify": true}, Version7, []string{"magick", "convert"}, 0},
		{"pre 7", map[string]bool{"identify": true, "convert": true}, VersionPre7, []string{"convert"}, 1},
		{"missing", map[string]bool{}, VersionUnknown, []string{"convert"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend("", &fakeTools{installed: tt.installed})
			if got := b.Version(); got != tt.want {
				t.Errorf("Version() = %v, want %v", got, tt.want)
			}
			p := &plan.Plan{}
			if got := b.Command(p); !reflect.DeepEqual(got[:len(tt.convert)], tt.convert) {
				t.Errorf("Command() = %v, want prefix %v", got, tt.convert)
			}
			if got := len(b.Warnings()); got != tt.warnings {
				t.Errorf("len(Warnings()) = %d, want %d", got, tt.warnings)
			}
		})
	}
}

func TestVersion_SearchPath(t *testing.T) {
	tools := &fakeTools{installed: map[string]bool{"/opt/im/bin/magick": true}}
	b := newFakeBackend("/opt/im/bin", tools)
	if b.Version() != Version7 {
		t.Fatalf("Version() = %v, want 7", b.Version())
	}
	if got := b.Command(&plan.Plan{})[0]; got != "/opt/im/bin/magick" {
		t.Errorf("command = %q", got)
	}
}

func TestCapabilities_Memoized(t *testing.T) {
	tools := &fakeTools{installed: map[string]bool{"magick": true}, stdout: formatList}
	b := newFakeBackend("", tools)

	caps := b.Capabilities()
	b.Capabilities()
	if len(tools.calls) != 1 {
		t.Fatalf("identify ran %d times, want 1", len(tools.calls))
	}
	wantArgs := []string{"identify", "-list", "format"}
	if tools.calls[0].name != "magick" || !reflect.DeepEqual(tools.calls[0].args, wantArgs) {
		t.Errorf("call = %+v", tools.calls[0])
	}
	if !caps.Supports(format.PDF, format.PNG) {
		t.Error("expected pdf -> png")
	}
	if err := b.InitError(); err != nil {
		t.Errorf("InitError() = %v", err)
	}

	b.Reset()
	b.Capabilities()
	if len(tools.calls) != 2 {
		t.Errorf("identify ran %d times after Reset, want 2", len(tools.calls))
	}
}

func TestCapabilities_Failure(t *testing.T) {
	b := newFakeBackend("", &fakeTools{installed: map[string]bool{}})
	if caps := b.Capabilities(); len(caps.Sources()) != 0 {
		t.Errorf("Sources() = %v, want none", caps.Sources())
	}
	if b.InitError() == nil {
		t.Error("expected an init error")
	}

	tools := &fakeTools{installed: map[string]bool{"identify": true}, err: errors.New("exit status 1")}
	b = newFakeBackend("", tools)
	b.Capabilities()
	if b.InitError() == nil {
		t.Error("expected an init error from a failed identify")
	}
}

func TestExecute(t *testing.T) {
	tools := &fakeTools{installed: map[string]bool{"magick": true}, stdout: "encoded"}
	b := newFakeBackend("", tools)

	p := &plan.Plan{}
	p.Add(plan.Input{Format: format.JPG})
	p.Add(plan.Depth{Bits: 8})
	p.Add(plan.Output{Format: format.PNG})

	var out strings.Builder
	if err := b.Execute(context.Background(), p, strings.NewReader("jpeg bytes"), &out); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.String() != "encoded" {
		t.Errorf("output = %q", out.String())
	}
	if tools.stdin != "jpeg bytes" {
		t.Errorf("stdin = %q", tools.stdin)
	}
	want := []string{"convert", "-auto-orient", "jpg:-[0]", "-depth", "8", "png:-"}
	if got := tools.calls[0].args; !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestExecute_Errors(t *testing.T) {
	b := newFakeBackend("", &fakeTools{installed: map[string]bool{}})
	err := b.Execute(context.Background(), &plan.Plan{}, strings.NewReader(""), io.Discard)
	if domain.ErrorCode(err) != domain.EBACKEND {
		t.Errorf("missing binaries: code = %q", domain.ErrorCode(err))
	}

	b = newFakeBackend("", &fakeTools{installed: map[string]bool{"magick": true}, err: errors.New("convert failed: exit status 1")})
	err = b.Execute(context.Background(), &plan.Plan{}, strings.NewReader(""), io.Discard)
	if domain.ErrorCode(err) != domain.EBACKEND {
		t.Errorf("failed run: code = %q", domain.ErrorCode(err))
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Errorf("error %q should carry the command failure", err)
	}
}

func TestReadInfo(t *testing.T) {
	tools := &fakeTools{installed: map[string]bool{"identify": true}, stdout: "100\n50\n8"}
	b := newFakeBackend("", tools)

	info, err := b.ReadInfo(context.Background(), format.TIF, strings.NewReader("tiff bytes"))
	if err != nil {
		t.Fatalf("ReadInfo() error = %v", err)
	}
	if info.Size != geometry.NewDimension(100, 50) || info.Format != format.TIF {
		t.Errorf("info = %+v", info)
	}
	if info.Orientation == nil || *info.Orientation != source.Rotate270 {
		t.Errorf("Orientation = %v, want 270", info.Orientation)
	}

	want := []string{"-ping", "-format", infoFormat, "tif:-"}
	if got := tools.calls[0]; got.name != "identify" || !reflect.DeepEqual(got.args, want) {
		t.Errorf("call = %+v", got)
	}
}
