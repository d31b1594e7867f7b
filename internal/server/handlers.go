package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
	"github.com/ironsheep/image-pipeline-mcp/internal/source"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_plan", "image_render").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// Optional backend features, discovered by type assertion.
type (
	infoReader interface {
		ReadInfo(ctx context.Context, f format.Format, r io.Reader) (source.Info, error)
	}
	commander interface {
		Command(p *plan.Plan) []string
	}
	warner interface {
		Warnings() []string
	}
	initErrorer interface {
		InitError() error
	}
)

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// whose data carries the error code and message.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "code", domain.ErrorCode(err), "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", toolError{
			Code:    domain.ErrorCode(err),
			Message: err.Error(),
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

type toolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	case "image_info":
		return s.handleImageInfo(ctx, args)
	case "image_plan":
		return s.handleImagePlan(ctx, args)
	case "image_render":
		return s.handleImageRender(ctx, args)
	case "image_scale":
		return s.handleImageScale(args)
	case "image_formats":
		return s.handleImageFormats()
	default:
		return nil, domain.Invalid("server.execute_tool", "unknown tool: "+name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return domain.Wrap(err, domain.EINVALID, "server.decode_args", "invalid arguments")
	}
	return nil
}

// sourceInfo returns the metadata of the file at path. Formats the Go
// decoders cannot read fall back to the backend's own probe when it has
// one.
func (s *Server) sourceInfo(ctx context.Context, path string) (source.Info, error) {
	const op = "server.source_info"

	if path == "" {
		return source.Info{}, domain.Invalid(op, "path is required")
	}
	info, err := s.infos.Info(path)
	if err == nil || !domain.IsCode(err, domain.EUNSUPPORTED) {
		return info, err
	}

	ir, ok := s.processor.Backend().(infoReader)
	if !ok {
		return source.Info{}, err
	}
	f, ferr := os.Open(path)
	if ferr != nil {
		return source.Info{}, domain.Wrap(ferr, domain.EINVALID, op, "failed to open image")
	}
	defer f.Close()

	info, err = ir.ReadInfo(ctx, format.FromPath(path), f)
	if err != nil {
		return source.Info{}, err
	}
	s.infos.Store(path, info)
	return info, nil
}

// === image_info ===

type imageInfoArgs struct {
	Path string `json:"path"`
}

type imageInfoResult struct {
	Path         string             `json:"path"`
	Format       string             `json:"format"`
	MediaType    string             `json:"media_type"`
	Size         geometry.Dimension `json:"size"`
	OrientedSize geometry.Dimension `json:"oriented_size"`
	Orientation  int                `json:"orientation"`
	Paged        bool               `json:"paged"`
	Vector       bool               `json:"vector"`
	Outputs      []string           `json:"outputs"`
}

func (s *Server) handleImageInfo(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	info, err := s.sourceInfo(ctx, a.Path)
	if err != nil {
		return nil, err
	}

	outputs := []string{}
	for _, f := range s.processor.Backend().Capabilities().Outputs(info.Format) {
		outputs = append(outputs, f.String())
	}
	orientation := 0
	if info.Orientation != nil {
		orientation = info.Orientation.Degrees()
	}
	return imageInfoResult{
		Path:         a.Path,
		Format:       info.Format.String(),
		MediaType:    info.Format.MediaType(),
		Size:         info.Size,
		OrientedSize: info.OrientedSize(),
		Orientation:  orientation,
		Paged:        info.Format.IsPaged(),
		Vector:       info.Format.IsVector(),
		Outputs:      outputs,
	}, nil
}

// === image_plan ===

type imagePlanResult struct {
	Operations string     `json:"operations"`
	Plan       *plan.Plan `json:"plan"`
	Backend    string     `json:"backend"`
	Command    []string   `json:"command,omitempty"`
}

// request builds the pipeline request for the file named in args and
// returns it with that path.
func (s *Server) request(ctx context.Context, args json.RawMessage) (pipeline.Request, string, error) {
	var a pipelineArgs
	if err := decodeArgs(args, &a); err != nil {
		return pipeline.Request{}, "", err
	}
	info, err := s.sourceInfo(ctx, a.Path)
	if err != nil {
		return pipeline.Request{}, "", err
	}
	l, err := buildList(&a)
	if err != nil {
		return pipeline.Request{}, "", err
	}
	req := pipeline.Request{List: l, Info: info}
	if info.Format.IsKnown() && !info.Format.IsVector() && !info.Format.IsPaged() {
		req.Reader = source.NewFileReader(a.Path)
	}
	return req, a.Path, nil
}

func (s *Server) handleImagePlan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	req, _, err := s.request(ctx, args)
	if err != nil {
		return nil, err
	}
	p, err := s.processor.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	result := imagePlanResult{
		Operations: req.List.String(),
		Plan:       p,
		Backend:    s.processor.Backend().Name(),
	}
	if c, ok := s.processor.Backend().(commander); ok {
		result.Command = c.Command(p)
	}
	return result, nil
}

// === image_render ===

type imageRenderResult struct {
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Format      string   `json:"format"`
	MimeType    string   `json:"mime_type"`
	Bytes       int      `json:"bytes"`
	ImageBase64 string   `json:"image_base64"`
	Warnings    []string `json:"warnings"`
}

func (s *Server) handleImageRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	const op = "server.render"

	req, path, err := s.request(ctx, args)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "failed to open image")
	}
	defer f.Close()
	req.Input = f

	var buf bytes.Buffer
	p, err := s.processor.Process(ctx, req, &buf)
	if err != nil {
		return nil, err
	}

	warnings := p.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	out := p.OutputFormat()
	return imageRenderResult{
		Width:       p.Size.Width,
		Height:      p.Size.Height,
		Format:      out.String(),
		MimeType:    out.MediaType(),
		Bytes:       buf.Len(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Warnings:    warnings,
	}, nil
}

// === image_scale ===

type imageScaleArgs struct {
	// Path, when set, supplies the full size and enables verification.
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	Scale           operationArgs   `json:"scale"`
	ScaleConstraint *constraintArgs `json:"scale_constraint"`
	MaxReduction    int             `json:"max_reduction"`
}

type imageScaleResult struct {
	Scale             string              `json:"scale"`
	FullSize          geometry.Dimension  `json:"full_size"`
	ResultingSize     geometry.Dimension  `json:"resulting_size"`
	ResultingScale    *float64            `json:"resulting_scale,omitempty"`
	ReductionFactor   int                 `json:"reduction_factor"`
	DifferentialScale *float64            `json:"differential_scale,omitempty"`
	IsUp              bool                `json:"is_up"`
	HasEffect         bool                `json:"has_effect"`
	Decoded           *geometry.Dimension `json:"decoded_size,omitempty"`
	Produced          *geometry.Dimension `json:"produced_size,omitempty"`
}

func (s *Server) handleImageScale(args json.RawMessage) (interface{}, error) {
	const op = "server.scale"

	var a imageScaleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	full := geometry.NewDimension(a.Width, a.Height)
	var reader *source.FileReader
	if a.Path != "" {
		reader = source.NewFileReader(a.Path)
		info, err := reader.Info()
		if err != nil {
			return nil, err
		}
		full = info.Size
	}
	if full.IsEmpty() {
		return nil, domain.Invalid(op, "either path or a positive width and height is required")
	}

	sc := geometry.IdentityConstraint()
	if c := a.ScaleConstraint; c != nil {
		var err error
		if sc, err = geometry.NewScaleConstraint(c.Numerator, c.Denominator); err != nil {
			return nil, err
		}
	}
	if a.MaxReduction <= 0 {
		a.MaxReduction = pipeline.DefaultMaxReduction
	}

	a.Scale.Type = "scale"
	o, err := a.Scale.operation()
	if err != nil {
		return nil, err
	}
	scale := o.(*operation.Scale)
	if err := scale.Validate(); err != nil {
		return nil, err
	}

	rf := scale.ReductionFactor(full, sc, a.MaxReduction)
	result := imageScaleResult{
		Scale:           scale.String(),
		FullSize:        full,
		ResultingSize:   scale.ResultingSizeAt(full, geometry.NoReduction(), sc),
		ReductionFactor: rf.Factor,
		IsUp:            scale.IsUp(sc.Apply(full)),
		HasEffect:       scale.HasEffectAt(operation.NewFrame(full, geometry.NoReduction(), sc)),
	}
	if v, ok := scale.ResultingScale(full, sc); ok {
		result.ResultingScale = &v
	}
	if v, ok := scale.DifferentialScale(full, rf, sc); ok {
		result.DifferentialScale = &v
	}

	if reader != nil {
		img, err := reader.DecodeAt(rf)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		decoded := geometry.NewDimension(b.Dx(), b.Dy())
		target := scale.ResultingSizeAt(decoded, rf, sc)
		produced := imaging.Resize(img, target.Width, target.Height, imaging.Lanczos).Bounds()
		result.Decoded = &decoded
		result.Produced = &geometry.Dimension{Width: produced.Dx(), Height: produced.Dy()}
	}
	return result, nil
}

// === image_formats ===

type imageFormatsResult struct {
	Backend  string              `json:"backend"`
	Formats  map[string][]string `json:"formats"`
	Warnings []string            `json:"warnings,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func (s *Server) handleImageFormats() (interface{}, error) {
	b := s.processor.Backend()
	result := imageFormatsResult{
		Backend: b.Name(),
		Formats: b.Capabilities().Table(),
	}
	if w, ok := b.(warner); ok {
		result.Warnings = w.Warnings()
	}
	if e, ok := b.(initErrorer); ok {
		if err := e.InitError(); err != nil {
			result.Error = err.Error()
		}
	}
	return result, nil
}
