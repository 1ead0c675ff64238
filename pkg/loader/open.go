package loader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// OpenTimeout bounds reading one remote object.
var OpenTimeout = 30 * time.Second

// newGCSClient is replaced in tests.
var newGCSClient = func(ctx context.Context) (*storage.Client, error) { return storage.NewClient(ctx) }

// splitGCS splits gs://bucket/object. ok is false for other paths.
func splitGCS(path string) (bucket, object string, ok bool, err error) {
	rest, found := strings.CutPrefix(path, "gs://")
	if !found {
		return "", "", false, nil
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", true, fmt.Errorf("invalid object url %q", path)
	}
	return bucket, object, true, nil
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// open returns a reader for a local path or a gs://bucket/object URL.
// Names ending in .gz are decompressed.
func open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, object, remote, err := splitGCS(path)
	if err != nil {
		return nil, err
	}

	rc := &multiCloser{}
	if remote {
		ctx, cancel := context.WithTimeout(ctx, OpenTimeout)
		client, err := newGCSClient(ctx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("storage client: %w", err)
		}
		r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			cancel()
			client.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		rc.Reader = r
		rc.closers = append(rc.closers, closerFunc(func() error { cancel(); return nil }), client, r)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		rc.Reader = f
		rc.closers = append(rc.closers, f)
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(rc.Reader)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("%s: decompress: %w", path, err)
		}
		rc.Reader = gz
		rc.closers = append(rc.closers, gz)
	}
	return rc, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
