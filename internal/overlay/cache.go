// Package overlay resolves overlay image references to local files that a
// backend can composite. Fetched images live in a temporary directory owned
// by the Cache until it is closed.
package overlay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/image-pipeline-mcp/internal/metrics"
)

// Asset is an overlay image stored on local disk.
type Asset struct {
	Ref    string `json:"ref"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// Cache fetches overlay images once per reference and keeps them on disk.
// Concurrent resolutions of the same reference share a single fetch.
type Cache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	assets map[string]Asset
	closed bool
}

// NewCache creates a cache storing its files in a new directory beneath
// parent, or beneath the system temp directory when parent is empty.
func NewCache(parent string, fetcher Fetcher, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dir, err := os.MkdirTemp(parent, "overlays-")
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay directory: %w", err)
	}
	return &Cache{
		dir:     dir,
		fetcher: fetcher,
		logger:  logger,
		assets:  make(map[string]Asset),
	}, nil
}

// Dir returns the directory holding cached assets.
func (c *Cache) Dir() string { return c.dir }

// Resolve returns the local asset for ref, fetching it on first use.
func (c *Cache) Resolve(ctx context.Context, ref string) (Asset, error) {
	if a, ok, err := c.lookup(ref); ok || err != nil {
		return a, err
	}

	v, err, _ := c.group.Do(ref, func() (interface{}, error) {
		if a, ok, err := c.lookup(ref); ok || err != nil {
			return a, err
		}
		return c.fetch(ctx, ref)
	})
	if err != nil {
		metrics.OverlayFailed()
		return Asset{}, err
	}
	return v.(Asset), nil
}

// ResolveBytes stores inline image data under ref. Data already held under
// ref is not rewritten.
func (c *Cache) ResolveBytes(ctx context.Context, ref string, data []byte) (Asset, error) {
	if a, ok, err := c.lookup(ref); ok || err != nil {
		return a, err
	}
	v, err, _ := c.group.Do(ref, func() (interface{}, error) {
		if a, ok, err := c.lookup(ref); ok || err != nil {
			return a, err
		}
		a, err := c.store(ref, "", bytes.NewReader(data))
		if err != nil {
			return Asset{}, &FetchError{Ref: ref, Err: err}
		}
		return a, nil
	})
	if err != nil {
		metrics.OverlayFailed()
		return Asset{}, err
	}
	return v.(Asset), nil
}

// LocalPath resolves an overlay to a file path. Inline data takes
// precedence over fetching ref.
func (c *Cache) LocalPath(ctx context.Context, ref string, data []byte) (string, error) {
	var (
		a   Asset
		err error
	)
	if len(data) > 0 {
		a, err = c.ResolveBytes(ctx, ref, data)
	} else {
		a, err = c.Resolve(ctx, ref)
	}
	if err != nil {
		return "", err
	}
	return a.Path, nil
}

// Assets returns the cached assets ordered by reference.
func (c *Cache) Assets() []Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Asset, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.assets)
}

// Close deletes every cached file. Later resolutions fail with ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.assets = make(map[string]Asset)
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to remove overlay directory: %w", err)
	}
	c.logger.Debug("overlay cache closed", "dir", c.dir)
	return nil
}

func (c *Cache) lookup(ref string) (Asset, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return Asset{}, false, &FetchError{Ref: ref, Err: ErrClosed}
	}
	a, ok := c.assets[ref]
	if ok {
		metrics.OverlayHit()
	}
	return a, ok, nil
}

func (c *Cache) fetch(ctx context.Context, ref string) (Asset, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return Asset{}, &FetchError{Ref: ref, Err: err}
	}
	if c.fetcher == nil {
		return Asset{}, &FetchError{Ref: ref, Err: ErrUnsupportedScheme}
	}

	start := time.Now()
	rc, err := c.fetcher.Open(ctx, u)
	if err != nil {
		return Asset{}, &FetchError{Ref: ref, Err: err}
	}
	defer rc.Close()

	a, err := c.store(ref, filepath.Ext(u.Path), rc)
	if err != nil {
		return Asset{}, &FetchError{Ref: ref, Err: err}
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "file"
	}
	metrics.OverlayFetched(scheme, time.Since(start))
	c.logger.Debug("overlay fetched", "ref", ref, "path", a.Path, "bytes", a.Size)
	return a, nil
}

// store copies r into a new file and records it under ref.
func (c *Cache) store(ref, ext string, r io.Reader) (Asset, error) {
	path := filepath.Join(c.dir, uuid.NewString()+strings.ToLower(ext))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Asset{}, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Asset{}, err
	}

	a := Asset{Ref: ref, Path: path, Size: n, Digest: hex.EncodeToString(h.Sum(nil))}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		os.Remove(path)
		return Asset{}, ErrClosed
	}
	c.assets[ref] = a
	return a, nil
}
