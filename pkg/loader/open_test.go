package loader

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitGCS(t *testing.T) {
	tests := []struct {
		path           string
		bucket, object string
		remote, err    bool
	}{
		{path: "config/regions.csv"},
		{path: "gs://grid/2024/regions.csv.gz", bucket: "grid", object: "2024/regions.csv.gz", remote: true},
		{path: "gs://grid", remote: true, err: true},
		{path: "gs:///object", remote: true, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			bucket, object, remote, err := splitGCS(tt.path)
			assert.Equal(t, tt.remote, remote)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestLoadRegions_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("region,grid_intensity,zone\neu-north,41.5,SE\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	rs, err := LoadRegions(path)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 41.5, rs[0].GridIntensity)

	_, err = LoadRegions(writeFile(t, "plain.csv.gz", "region,grid_intensity\n"))
	assert.ErrorContains(t, err, "decompress")
}

func TestLoadRegions_GCSClientError(t *testing.T) {
	orig := newGCSClient
	t.Cleanup(func() { newGCSClient = orig })
	newGCSClient = func(context.Context) (*storage.Client, error) {
		return nil, errors.New("no credentials")
	}

	_, err := LoadRegions("gs://grid/regions.csv")
	assert.ErrorContains(t, err, "no credentials")

	_, err = LoadRegions("gs://grid")
	assert.ErrorContains(t, err, "invalid object url")
}
