package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/logging"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
	"github.com/ironsheep/image-pipeline-mcp/internal/source"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "source.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatal(err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unmarshals the JSON text of a successful tool response.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
}

func toolErrorCode(t *testing.T, resp *MCPResponse) string {
	t.Helper()

	if resp.Error == nil {
		t.Fatal("Expected error")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	data, ok := resp.Error.Data.(toolError)
	if !ok {
		t.Fatalf("Error data: got %T", resp.Error.Data)
	}
	return data.Code
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info imageInfoResult
	decodeResult(t, callTool(t, s, "image_info", map[string]interface{}{"path": path}), &info)

	if info.Format != "png" || info.MediaType != "image/png" {
		t.Errorf("format: got %s %s", info.Format, info.MediaType)
	}
	if info.Size != geometry.NewDimension(100, 80) {
		t.Errorf("size: got %s, want 100x80", info.Size)
	}
	if info.Orientation != 0 || info.Paged || info.Vector {
		t.Errorf("unexpected traits: %+v", info)
	}
	found := false
	for _, f := range info.Outputs {
		found = found || f == "jpg"
	}
	if !found {
		t.Errorf("outputs %v should include jpg", info.Outputs)
	}
	if s.infos.Len() != 1 {
		t.Errorf("info cache: got %d entries, want 1", s.infos.Len())
	}
}

func TestHandleToolsCall_ImageInfoErrors(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "image_info", map[string]interface{}{"path": filepath.Join(t.TempDir(), "missing.png")})
	if code := toolErrorCode(t, resp); code != domain.ENOTFOUND {
		t.Errorf("missing file: got %s, want %s", code, domain.ENOTFOUND)
	}

	resp = callTool(t, s, "image_info", map[string]interface{}{})
	if code := toolErrorCode(t, resp); code != domain.EINVALID {
		t.Errorf("no path: got %s, want %s", code, domain.EINVALID)
	}
}

func TestHandleToolsCall_ImagePlan(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.RGBA{0, 0, 255, 255})

	var result struct {
		Operations string `json:"operations"`
		Backend    string `json:"backend"`
		Command    []string
		Plan       struct {
			Directives []struct {
				Type string `json:"type"`
			} `json:"directives"`
			Elided   []string           `json:"elided"`
			Warnings []string           `json:"warnings"`
			Size     geometry.Dimension `json:"size"`
		} `json:"plan"`
	}
	decodeResult(t, callTool(t, s, "image_plan", map[string]interface{}{
		"path":   path,
		"format": "jpg",
		"operations": []map[string]interface{}{
			{"type": "crop", "shape": "full"},
			{"type": "scale", "percent": 0.5},
			{"type": "rotate", "degrees": 90},
		},
	}), &result)

	if result.Backend != "native" {
		t.Errorf("backend: got %s", result.Backend)
	}
	if result.Command != nil {
		t.Errorf("native backend has no command line, got %v", result.Command)
	}
	if result.Plan.Size != geometry.NewDimension(40, 50) {
		t.Errorf("size: got %s, want 40x50", result.Plan.Size)
	}
	if len(result.Plan.Elided) == 0 || result.Plan.Elided[0] != "crop" {
		t.Errorf("elided: got %v, want the full crop first", result.Plan.Elided)
	}
	first, last := result.Plan.Directives[0].Type, result.Plan.Directives[len(result.Plan.Directives)-1].Type
	if first != plan.KindInput || last != plan.KindOutput {
		t.Errorf("directives should run input..output, got %s..%s", first, last)
	}
}

func TestHandleToolsCall_ImageRender(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.RGBA{0, 255, 0, 255})

	var result imageRenderResult
	decodeResult(t, callTool(t, s, "image_render", map[string]interface{}{
		"path":    path,
		"format":  "jpg",
		"quality": 90,
		"operations": []map[string]interface{}{
			{"type": "crop", "x": 10, "y": 10, "width": 60, "height": 40},
			{"type": "scale", "mode": "aspect_fit_width", "width": 30},
		},
	}), &result)

	if result.MimeType != "image/jpeg" || result.Format != "jpg" {
		t.Errorf("format: got %s %s", result.Format, result.MimeType)
	}
	if result.Width != 30 || result.Height != 20 {
		t.Errorf("size: got %dx%d, want 30x20", result.Width, result.Height)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("output is not base64: %v", err)
	}
	if len(data) != result.Bytes {
		t.Errorf("bytes: got %d, decoded %d", result.Bytes, len(data))
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if name != "jpeg" || cfg.Width != 30 || cfg.Height != 20 {
		t.Errorf("decoded %s %dx%d, want jpeg 30x20", name, cfg.Width, cfg.Height)
	}
}

func TestHandleToolsCall_ImageRenderMissingOverlay(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 40, 40, color.White)

	var result imageRenderResult
	decodeResult(t, callTool(t, s, "image_render", map[string]interface{}{
		"path": path,
		"operations": []map[string]interface{}{
			{"type": "overlay", "uri": "/nowhere/logo.png"},
		},
	}), &result)

	if len(result.Warnings) != 1 {
		t.Errorf("warnings: got %v, want one overlay warning", result.Warnings)
	}
}

func TestHandleToolsCall_ImageRenderUnsupported(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 10, 10, color.Black)

	resp := callTool(t, s, "image_render", map[string]interface{}{"path": path, "format": "jp2"})
	if code := toolErrorCode(t, resp); code != domain.EUNSUPPORTED {
		t.Errorf("got %s, want %s", code, domain.EUNSUPPORTED)
	}
}

func TestHandleToolsCall_ImageScale(t *testing.T) {
	s := newTestServer(t)

	var result imageScaleResult
	decodeResult(t, callTool(t, s, "image_scale", map[string]interface{}{
		"width":  1000,
		"height": 800,
		"scale":  map[string]interface{}{"percent": 0.25},
	}), &result)

	if result.ResultingSize != geometry.NewDimension(250, 200) {
		t.Errorf("resulting size: got %s, want 250x200", result.ResultingSize)
	}
	if result.ReductionFactor != 2 {
		t.Errorf("reduction factor: got %d, want 2", result.ReductionFactor)
	}
	if result.ResultingScale == nil || *result.ResultingScale != 0.25 {
		t.Errorf("resulting scale: got %v, want 0.25", result.ResultingScale)
	}
	if result.DifferentialScale == nil || *result.DifferentialScale != 1 {
		t.Errorf("differential scale: got %v, want 1", result.DifferentialScale)
	}
	if result.IsUp || !result.HasEffect {
		t.Errorf("is_up=%v has_effect=%v, want false true", result.IsUp, result.HasEffect)
	}
	if result.Decoded != nil || result.Produced != nil {
		t.Error("no verification without a path")
	}
}

func TestHandleToolsCall_ImageScaleFill(t *testing.T) {
	s := newTestServer(t)

	var result imageScaleResult
	decodeResult(t, callTool(t, s, "image_scale", map[string]interface{}{
		"width":  100,
		"height": 100,
		"scale":  map[string]interface{}{"mode": "non_aspect_fill", "width": 300, "height": 50},
	}), &result)

	if result.ResultingScale != nil || result.DifferentialScale != nil {
		t.Error("non-aspect fill has no uniform scale")
	}
	if result.ReductionFactor != 0 {
		t.Errorf("reduction factor: got %d, want 0", result.ReductionFactor)
	}
	if !result.IsUp {
		t.Error("a wider target enlarges")
	}
}

func TestHandleToolsCall_ImageScaleVerifies(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.Gray{128})

	var result imageScaleResult
	decodeResult(t, callTool(t, s, "image_scale", map[string]interface{}{
		"path":  path,
		"scale": map[string]interface{}{"percent": 0.5},
	}), &result)

	if result.ReductionFactor != 1 {
		t.Fatalf("reduction factor: got %d, want 1", result.ReductionFactor)
	}
	if result.Decoded == nil || *result.Decoded != geometry.NewDimension(50, 40) {
		t.Errorf("decoded: got %v, want 50x40", result.Decoded)
	}
	if result.Produced == nil || *result.Produced != result.ResultingSize {
		t.Errorf("produced %v should equal resulting size %s", result.Produced, result.ResultingSize)
	}
}

func TestHandleToolsCall_ImageScaleErrors(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "image_scale", map[string]interface{}{"scale": map[string]interface{}{"percent": 0.5}})
	if code := toolErrorCode(t, resp); code != domain.EINVALID {
		t.Errorf("no size: got %s, want %s", code, domain.EINVALID)
	}

	resp = callTool(t, s, "image_scale", map[string]interface{}{
		"width": 10, "height": 10,
		"scale": map[string]interface{}{"mode": "aspect_fit_width"},
	})
	if code := toolErrorCode(t, resp); code != domain.EINVALID {
		t.Errorf("missing width: got %s, want %s", code, domain.EINVALID)
	}
}

func TestHandleToolsCall_ImageFormats(t *testing.T) {
	s := newTestServer(t)

	var result imageFormatsResult
	decodeResult(t, callTool(t, s, "image_formats", nil), &result)

	if result.Backend != "native" {
		t.Errorf("backend: got %s", result.Backend)
	}
	if len(result.Formats["png"]) == 0 {
		t.Errorf("png should have outputs, got %v", result.Formats)
	}
	if _, ok := result.Formats["pdf"]; ok {
		t.Error("native backend cannot read pdf")
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "image_blur", map[string]interface{}{})
	if code := toolErrorCode(t, resp); code != domain.EINVALID {
		t.Errorf("unknown tool: got %s, want %s", code, domain.EINVALID)
	}

	resp = s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("invalid params: got %+v, want -32602", resp.Error)
	}
}

// probingBackend stands in for a backend that reads sources the Go
// decoders cannot, and that can print its command line.
type probingBackend struct {
	info source.Info
}

func (b *probingBackend) Name() string { return "probing" }

func (b *probingBackend) Capabilities() format.Capabilities {
	return format.NewCapabilities([]format.Format{format.PDF}, []format.Format{format.PNG})
}

func (b *probingBackend) Execute(context.Context, *plan.Plan, io.Reader, io.Writer) error {
	return nil
}

func (b *probingBackend) ReadInfo(_ context.Context, f format.Format, r io.Reader) (source.Info, error) {
	if _, err := io.ReadAll(r); err != nil {
		return source.Info{}, err
	}
	info := b.info
	info.Format = f
	return info, nil
}

func (b *probingBackend) Command(p *plan.Plan) []string {
	return []string{"convert", p.String()}
}

func (b *probingBackend) Warnings() []string { return []string{"old version"} }

func TestHandleToolsCall_BackendProbe(t *testing.T) {
	logger := logging.Discard()
	backend := &probingBackend{info: source.Info{Size: geometry.NewDimension(612, 792)}}
	s := New(pipeline.NewProcessor(backend, nil, pipeline.Config{}, logger), "test", logger)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var info imageInfoResult
	decodeResult(t, callTool(t, s, "image_info", map[string]interface{}{"path": path}), &info)
	if info.Format != "pdf" || !info.Paged || !info.Vector {
		t.Errorf("info: got %+v", info)
	}
	if info.Size != geometry.NewDimension(612, 792) {
		t.Errorf("size: got %s", info.Size)
	}

	resp := callTool(t, s, "image_plan", map[string]interface{}{"path": path, "page": 2})
	if resp.Error != nil {
		t.Fatalf("plan: %+v", resp.Error)
	}
	var raw map[string]interface{}
	decodeResult(t, resp, &raw)
	if cmd, ok := raw["command"].([]interface{}); !ok || len(cmd) != 2 || cmd[0] != "convert" {
		t.Errorf("command: got %v", raw["command"])
	}

	var formats imageFormatsResult
	decodeResult(t, callTool(t, s, "image_formats", nil), &formats)
	if len(formats.Warnings) != 1 {
		t.Errorf("warnings: got %v", formats.Warnings)
	}
}
