package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
	"github.com/ironsheep/image-pipeline-mcp/internal/metrics"
	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
	"github.com/ironsheep/image-pipeline-mcp/internal/source"
)

// DefaultMaxReduction caps the reduction factor chosen for decoding.
const DefaultMaxReduction = 5

// Config holds the processor's translation defaults.
type Config struct {
	Background   string
	BaseDPI      float64
	MaxReduction int
}

// Processor turns operation lists into rendered images with one backend.
// It is safe for concurrent use when its backend and resolver are.
type Processor struct {
	backend  Backend
	overlays OverlayResolver
	cfg      Config
	logger   *slog.Logger
}

// NewProcessor returns a processor. overlays may be nil, in which case every
// overlay is skipped with a warning.
func NewProcessor(backend Backend, overlays OverlayResolver, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxReduction <= 0 {
		cfg.MaxReduction = DefaultMaxReduction
	}
	return &Processor{backend: backend, overlays: overlays, cfg: cfg, logger: logger}
}

// Backend returns the processor's backend.
func (p *Processor) Backend() Backend { return p.backend }

// Request is one rendering job.
type Request struct {
	List *operation.List
	Info source.Info

	// Input is the encoded source. It is used when Reader is nil or the
	// backend cannot start from decoded pixels.
	Input io.Reader

	// Reader enables reduced-resolution decoding for an ImageBackend.
	Reader source.Reader
}

// Plan checks, resolves and translates a request without executing it.
// The reduction factor is that of the decode Process would perform.
func (p *Processor) Plan(ctx context.Context, req Request) (*plan.Plan, error) {
	rf := geometry.NoReduction()
	if _, ok := p.backend.(ImageBackend); ok && req.Reader != nil {
		rf = ReductionFor(req.List, req.Info.OrientedSize(), p.cfg.MaxReduction)
	}
	return p.plan(ctx, req, rf)
}

func (p *Processor) plan(ctx context.Context, req Request, rf geometry.ReductionFactor) (*plan.Plan, error) {
	const op = "processor.plan"

	if req.List == nil || !req.List.IsFrozen() {
		return nil, domain.State(op, "operation list must be frozen")
	}
	src, out := req.Info.Format, req.List.OutputFormat()
	if !p.backend.Capabilities().Supports(src, out) {
		metrics.PlanFailed()
		return nil, domain.Unsupported(op, p.backend.Name()+" cannot convert "+src.String()+" to "+out.String())
	}

	assets := p.resolveOverlays(ctx, req.List)

	pl, err := Translate(req.List, req.Info, assets, Options{
		Reduction:    rf,
		Background:   p.cfg.Background,
		BaseDPI:      p.cfg.BaseDPI,
		MaxReduction: p.cfg.MaxReduction,
	})
	if err != nil {
		metrics.PlanFailed()
		return nil, err
	}
	for _, w := range pl.Warnings {
		p.logger.Warn("plan warning", "warning", w, "backend", p.backend.Name())
	}
	metrics.PlanTranslated(pl.Elided, len(pl.Warnings))
	p.logger.Debug("plan translated",
		"ops", req.List.String(),
		"plan", pl.String(),
		"reduction_factor", rf.Factor,
		"size", pl.Size.String())
	return pl, nil
}

// Process plans the request and runs it on the backend, writing the
// encoded result to out.
func (p *Processor) Process(ctx context.Context, req Request, out io.Writer) (*plan.Plan, error) {
	const op = "processor.process"

	ib, decoded := p.backend.(ImageBackend)
	decoded = decoded && req.Reader != nil

	rf := geometry.NoReduction()
	if decoded {
		rf = ReductionFor(req.List, req.Info.OrientedSize(), p.cfg.MaxReduction)
	}
	pl, err := p.plan(ctx, req, rf)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if decoded {
		img, derr := req.Reader.DecodeAt(rf)
		if derr != nil {
			metrics.BackendFailed(p.backend.Name())
			return nil, derr
		}
		err = ib.ExecuteImage(ctx, pl, img, out)
	} else {
		if req.Input == nil {
			return nil, domain.Invalid(op, "request has no input")
		}
		err = p.backend.Execute(ctx, pl, req.Input, out)
	}
	if err != nil {
		metrics.BackendFailed(p.backend.Name())
		p.logger.Error("backend failed", "backend", p.backend.Name(), "error", err)
		if domain.ErrorCode(err) == domain.EINTERNAL {
			return nil, domain.Backend(err, op, "rendering failed")
		}
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.BackendCompleted(p.backend.Name(), elapsed)
	p.logger.Info("rendered",
		"backend", p.backend.Name(),
		"format", pl.OutputFormat().String(),
		"size", pl.Size.String(),
		"duration_ms", elapsed.Milliseconds())
	return pl, nil
}

// resolveOverlays fetches every overlay image. Failures are logged and
// leave the reference unresolved, which Translate turns into a warning.
func (p *Processor) resolveOverlays(ctx context.Context, l *operation.List) Assets {
	overlays := l.Overlays()
	if len(overlays) == 0 || p.overlays == nil {
		return nil
	}
	assets := make(Assets, len(overlays))
	for _, o := range overlays {
		path, err := p.overlays.LocalPath(ctx, o.Ref(), o.Data())
		if err != nil {
			p.logger.Warn("overlay resolution failed", "ref", o.Ref(), "error", err)
			continue
		}
		assets[o.Ref()] = path
	}
	return assets
}

// ReductionFor picks the reduction factor at which to decode a source of
// the given full size for l. It is derived from the first Scale against the
// image that Scale receives, so a preceding crop is accounted for. Without
// a Scale the source is decoded at full resolution.
func ReductionFor(l *operation.List, full geometry.Dimension, max int) geometry.ReductionFactor {
	s := l.FirstScale()
	if s == nil {
		return geometry.NoReduction()
	}
	f := l.FrameBefore(s, full, geometry.NoReduction())
	return s.ReductionFactor(f.Size, f.Constraint, max)
}
