package pipeline

import (
	"context"
	"image"
	"io"

	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
)

// Backend executes rendering plans.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Capabilities reports which outputs can be produced from which sources.
	Capabilities() format.Capabilities

	// Execute reads the encoded source from in, applies p and writes the
	// encoded result to out.
	Execute(ctx context.Context, p *plan.Plan, in io.Reader, out io.Writer) error
}

// ImageBackend is a Backend that can also start from pixels a
// source.Reader has already decoded, possibly at a reduced resolution.
type ImageBackend interface {
	Backend

	// ExecuteImage applies p to img and writes the encoded result to out.
	// The plan's Input directive is ignored.
	ExecuteImage(ctx context.Context, p *plan.Plan, img image.Image, out io.Writer) error
}

// OverlayResolver materializes overlay images as local files.
type OverlayResolver interface {
	// LocalPath returns the path of a readable local copy of ref's image.
	LocalPath(ctx context.Context, ref string, data []byte) (string, error)
}
