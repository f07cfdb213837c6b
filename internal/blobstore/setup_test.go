package blobstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docusight/internal/config"
)

func TestSetup(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "blobs")
		store, err := Setup(context.Background(), &config.Config{BlobBackend: BackendLocal, LocalBlobDir: dir}, testLogger())
		require.NoError(t, err)
		assert.IsType(t, &LocalStore{}, store)
		assert.DirExists(t, dir)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Setup(context.Background(), &config.Config{BlobBackend: "ftp"}, testLogger())
		assert.ErrorContains(t, err, `unknown blob backend "ftp"`)
	})
}
