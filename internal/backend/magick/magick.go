// Package magick executes rendering plans with the ImageMagick command-line
// tools. ImageMagick 7 is invoked as "magick convert" and "magick identify";
// earlier versions through their standalone convert and identify binaries.
//
// The installed version and its supported formats are probed on first use
// and memoized for the life of the Backend.
package magick

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/plan"
)

// Name identifies the backend in logs and metrics.
const Name = "magick"

// Version is the generation of the installed ImageMagick.
type Version int

const (
	VersionUnknown Version = iota
	VersionPre7
	Version7
)

func (v Version) String() string {
	switch v {
	case Version7:
		return "7"
	case VersionPre7:
		return "<7"
	}
	return "unknown"
}

// runFunc starts name with args, wiring stdin and stdout, and waits for it.
type runFunc func(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error

// Backend renders plans by piping the source through convert.
type Backend struct {
	searchPath string
	logger     *slog.Logger

	lookPath func(string) (string, error)
	run      runFunc

	mu      sync.Mutex
	probed  bool
	version Version
	listed  bool
	caps    format.Capabilities
	initErr error
}

// New returns a backend. searchPath is the directory holding the ImageMagick
// binaries; when empty they are looked up on PATH.
func New(searchPath string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{
		searchPath: searchPath,
		logger:     logger,
		lookPath:   exec.LookPath,
		run:        runCommand,
	}
}

// Name implements pipeline.Backend.
func (b *Backend) Name() string { return Name }

// Version probes for the "magick" binary, then for "identify". The result
// is memoized until Reset.
func (b *Backend) Version() Version {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.versionLocked()
}

func (b *Backend) versionLocked() Version {
	if b.probed {
		return b.version
	}
	b.probed = true

	if _, err := b.lookPath(b.path("magick")); err == nil {
		b.logger.Info("found magick command; assuming ImageMagick 7+")
		b.version = Version7
		return b.version
	}
	b.logger.Info("couldn't find magick command; checking for ImageMagick <7")
	if _, err := b.lookPath(b.path("identify")); err == nil {
		b.logger.Info("found identify command; assuming ImageMagick <7")
		b.version = VersionPre7
		return b.version
	}
	b.logger.Error("couldn't find an ImageMagick binary", "search_path", b.searchPath)
	b.version = VersionUnknown
	return b.version
}

// Capabilities implements pipeline.Backend. It runs "identify -list format"
// once; a failure yields an empty table and is reported by InitError.
func (b *Backend) Capabilities() format.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listed {
		return b.caps
	}
	b.listed = true

	cmd := b.identifyLocked()
	if cmd == nil {
		b.initErr = fmt.Errorf("can't find magick or identify binaries")
		b.caps = format.Capabilities{}
		return b.caps
	}
	args := append(cmd[1:], "-list", "format")

	var stdout bytes.Buffer
	b.logger.Info("reading supported formats", "command", strings.Join(append(cmd[:1:1], args...), " "))
	if err := b.run(context.Background(), cmd[0], args, nil, &stdout); err != nil {
		b.initErr = err
		b.caps = format.Capabilities{}
		return b.caps
	}
	b.caps = ParseFormatList(&stdout)
	return b.caps
}

// InitError reports why probing failed, or nil.
func (b *Backend) InitError() error {
	b.Capabilities()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initErr
}

// Warnings lists deployment problems worth surfacing to operators.
func (b *Backend) Warnings() []string {
	if b.Version() == VersionPre7 {
		return []string{"Support for ImageMagick <7 will be removed in a future release. Please upgrade to version 7."}
	}
	return nil
}

// Reset forgets the probed version and formats.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probed, b.listed = false, false
	b.version = VersionUnknown
	b.caps, b.initErr = nil, nil
}

// Command returns the full convert command line for p.
func (b *Backend) Command(p *plan.Plan) []string {
	b.mu.Lock()
	prefix := b.convertLocked()
	b.mu.Unlock()
	return append(prefix, Arguments(p)...)
}

// Execute implements pipeline.Backend.
func (b *Backend) Execute(ctx context.Context, p *plan.Plan, in io.Reader, out io.Writer) error {
	const op = "magick.execute"

	if b.Version() == VersionUnknown {
		return domain.Backend(fmt.Errorf("no ImageMagick binary found"), op, "ImageMagick is not installed")
	}
	cmd := b.Command(p)
	b.logger.Info("invoking convert", "command", strings.Join(cmd, " "))

	if err := b.run(ctx, cmd[0], cmd[1:], in, out); err != nil {
		return domain.Backend(err, op, "convert failed")
	}
	return nil
}

func (b *Backend) convertLocked() []string {
	if b.versionLocked() == Version7 {
		return []string{b.path("magick"), "convert"}
	}
	return []string{b.path("convert")}
}

// identifyLocked returns the identify command prefix, or nil when no
// ImageMagick is installed.
func (b *Backend) identifyLocked() []string {
	switch b.versionLocked() {
	case Version7:
		return []string{b.path("magick"), "identify"}
	case VersionPre7:
		return []string{b.path("identify")}
	}
	return nil
}

func (b *Backend) path(binary string) string {
	if b.searchPath == "" {
		return binary
	}
	return filepath.Join(b.searchPath, binary)
}

func runCommand(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w, stderr: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
