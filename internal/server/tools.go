package server

import (
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_info",
			Description: "Read a source image's format, pixel size, EXIF orientation and the output formats the configured backend can produce from it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_plan",
			Description: "Resolve an ordered list of operations against a source image into a rendering plan without executing it. Returns the plan's directives, the operations elided as no-ops, any warnings, the output size and, for the ImageMagick backend, the command line that would run.",
			InputSchema: pipelineSchema(),
		},
		{
			Name:        "image_render",
			Description: "Plan and execute an ordered list of operations against a source image with the configured backend. Returns the encoded result as base64 with its size and media type.",
			InputSchema: pipelineSchema(),
		},
		{
			Name:        "image_scale",
			Description: "Evaluate a scale against a full image size: resulting size, resulting and differential scale, the reduction factor a reader may decode at, and whether it enlarges. With a path, the image is decoded at that reduction factor and resized to verify the produced size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Optional image file supplying the full size",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Full image width, when no path is given",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Full image height, when no path is given",
					},
					"scale":            scaleSchema(),
					"scale_constraint": constraintSchema(),
					"max_reduction": map[string]interface{}{
						"type":        "integer",
						"description": "Largest reduction factor to consider. Default 5",
						"default":     5,
					},
				},
				"required": []string{"scale"},
			},
		},
		{
			Name:        "image_formats",
			Description: "List the output formats the configured backend can produce from each source format, with any backend warnings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

func pipelineSchema() map[string]interface{} {
	formats := []string{}
	for _, f := range format.All() {
		formats = append(formats, f.String())
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path to the source image",
			},
			"operations": map[string]interface{}{
				"type":        "array",
				"description": "Operations applied in order",
				"items":       operationSchema(),
			},
			"format": map[string]interface{}{
				"type":        "string",
				"enum":        formats,
				"description": "Output format. Default png",
				"default":     "png",
			},
			"quality": map[string]interface{}{
				"type":        "integer",
				"description": "JPEG quality 1-100. Default 80",
				"minimum":     1,
				"maximum":     100,
			},
			"compression": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"deflate", "jpeg", "lzw", "none", "rle"},
				"description": "TIFF compression",
			},
			"interlace": map[string]interface{}{
				"type":        "boolean",
				"description": "Write a progressive JPEG",
			},
			"background": map[string]interface{}{
				"type":        "string",
				"description": "Fill colour (#rrggbb) for outputs without alpha",
			},
			"page": map[string]interface{}{
				"type":        "integer",
				"description": "1-based page of a multi-page source. Default 1",
				"minimum":     1,
			},
			"scale_constraint": constraintSchema(),
		},
		"required": []string{"path"},
	}
}

func operationSchema() map[string]interface{} {
	positions := []string{}
	for _, p := range operation.Positions() {
		positions = append(positions, string(p))
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type": "string",
				"enum": []string{"crop", "scale", "transpose", "rotate", "color", "sharpen", "overlay"},
			},
			"shape": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"region", "full", "square"},
				"description": "crop: region to extract. Default region",
			},
			"unit": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"pixels", "percent"},
				"description": "crop: pixels, or fractions of the image in [0, 1]",
			},
			"x":      map[string]interface{}{"type": "number", "description": "crop: left edge"},
			"y":      map[string]interface{}{"type": "number", "description": "crop: top edge"},
			"width":  map[string]interface{}{"type": "number", "description": "crop or scale width"},
			"height": map[string]interface{}{"type": "number", "description": "crop or scale height"},
			"mode":   modeSchema(),
			"percent": map[string]interface{}{
				"type":        "number",
				"description": "scale: factor where 0.5 halves both axes",
			},
			"filter": filterSchema(),
			"axis": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(operation.TransposeHorizontal), string(operation.TransposeVertical)},
				"description": "transpose: mirror axis",
			},
			"degrees": map[string]interface{}{
				"type":        "number",
				"description": "rotate: clockwise degrees",
			},
			"transform": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(operation.ColorGray), string(operation.ColorBitonal)},
				"description": "color: transform to apply",
			},
			"amount": map[string]interface{}{
				"type":        "number",
				"description": "sharpen: unsharp mask amount",
			},
			"uri": map[string]interface{}{
				"type":        "string",
				"description": "overlay: image location (file path, file://, http(s):// or s3://)",
			},
			"data": map[string]interface{}{
				"type":        "string",
				"description": "overlay: inline base64 image, used instead of uri",
			},
			"position": map[string]interface{}{
				"type":        "string",
				"enum":        positions,
				"description": "overlay: anchor. Default bottom-right",
			},
			"inset": map[string]interface{}{
				"type":        "integer",
				"description": "overlay: distance in pixels from the anchored edges",
			},
		},
		"required": []string{"type"},
	}
}

func scaleSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode":    modeSchema(),
			"width":   map[string]interface{}{"type": "integer"},
			"height":  map[string]interface{}{"type": "integer"},
			"percent": map[string]interface{}{"type": "number", "description": "Factor where 0.5 halves both axes"},
			"filter":  filterSchema(),
		},
	}
}

func modeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "string",
		"enum": []string{
			string(operation.ScaleFull),
			string(operation.ScaleAspectFitWidth),
			string(operation.ScaleAspectFitHeight),
			string(operation.ScaleAspectFitInside),
			string(operation.ScaleNonAspectFill),
		},
		"description": "scale: how width and height are interpreted. Default full",
	}
}

func filterSchema() map[string]interface{} {
	filters := []string{}
	for _, f := range operation.Filters() {
		filters = append(filters, string(f))
	}
	return map[string]interface{}{
		"type":        "string",
		"enum":        filters,
		"description": "scale: resampling filter",
	}
}

func constraintSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Reduces the image the client sees to numerator/denominator of its full size",
		"properties": map[string]interface{}{
			"numerator":   map[string]interface{}{"type": "integer", "minimum": 1},
			"denominator": map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"required": []string{"numerator", "denominator"},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
