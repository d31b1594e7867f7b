package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Fetcher opens the image named by a reference URI.
type Fetcher interface {
	// Open returns the image bytes. The caller must close the reader.
	Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error)
}

// SchemeFetcher dispatches on the reference's URI scheme. A reference
// without a scheme is treated as "file".
type SchemeFetcher map[string]Fetcher

// Open implements Fetcher.
func (s SchemeFetcher) Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error) {
	scheme := strings.ToLower(ref.Scheme)
	if scheme == "" {
		scheme = "file"
	}
	f, ok := s[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return f.Open(ctx, ref)
}

// FileFetcher reads overlays from the local filesystem. When Root is set,
// paths are resolved beneath it and may not escape it.
type FileFetcher struct {
	Root string
}

// Open implements Fetcher.
func (f FileFetcher) Open(_ context.Context, ref *url.URL) (io.ReadCloser, error) {
	path := ref.Path
	if path == "" {
		path = ref.Opaque
	}
	if f.Root != "" {
		path = filepath.Join(f.Root, filepath.Clean("/"+path))
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	return file, nil
}

// HTTPFetcher downloads overlays over HTTP or HTTPS.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

// Open implements Fetcher.
func (h *HTTPFetcher) Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrAccessDenied
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// S3Config configures an S3Fetcher. Endpoint is optional and selects an
// S3-compatible store (MinIO, R2) with path-style addressing.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Fetcher reads overlays addressed as s3://bucket/key.
type S3Fetcher struct {
	client *s3.Client
	logger *slog.Logger
}

// NewS3Fetcher builds an S3 client from cfg. Static credentials are used
// when an access key is given; otherwise requests are anonymous.
func NewS3Fetcher(cfg S3Config, logger *slog.Logger) *S3Fetcher {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{Region: region}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	} else {
		awsCfg.Credentials = aws.AnonymousCredentials{}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if logger != nil {
		logger.Info("initialized S3 overlay fetcher", "region", region, "endpoint", cfg.Endpoint)
	}
	return &S3Fetcher{client: client, logger: logger}
}

// Open implements Fetcher.
func (s *S3Fetcher) Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error) {
	bucket := ref.Host
	key := strings.TrimPrefix(ref.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 reference needs a bucket and key: %s", ref)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3Error(err)
	}
	return out.Body, nil
}

// wrapS3Error converts S3 SDK errors to overlay errors.
func wrapS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
	}
	return fmt.Errorf("s3 request failed: %w", err)
}
