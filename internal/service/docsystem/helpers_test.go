package docsystem

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docusight/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type zipEntry struct {
	name     string
	body     string
	modified time.Time
}

// buildZip writes entries in order; names ending in "/" become directories
func buildZip(t *testing.T, entries ...zipEntry) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if !e.modified.IsZero() {
			hdr.Modified = e.modified
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if e.body != "" {
			_, err = w.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf
}

func testStager(t *testing.T, cfg StagerConfig) (*Stager, string) {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	return NewStager(cfg, worker.NewPool(4, testLogger()), testLogger()), cfg.Root
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
