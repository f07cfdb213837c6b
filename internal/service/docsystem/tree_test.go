package docsystem

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docusight/internal/domain"
	"docusight/internal/repository/memory"
)

func TestTreeService_GetFolderTree(t *testing.T) {
	store := memory.NewStore()
	builder := newTestBuilder(store, 8)
	ctx := context.Background()

	dirs := []string{"a", "a/b", "a/b/c", "a/d"}
	_, err := builder.Build(ctx, "user-1", "a", dirs, sampleSet("a/1.txt", "a/b/c/2.txt", "a/b/c/3.txt"), true)
	require.NoError(t, err)

	svc := NewTreeService(memory.NewFolderRepository(store), memory.NewDocumentRepository(store), testLogger())

	t.Run("subtree from a nested path", func(t *testing.T) {
		tree, err := svc.GetFolderTree(ctx, "user-1", "a/b")
		require.NoError(t, err)

		assert.Equal(t, "a/b", tree.Path)
		assert.Empty(t, tree.Documents)
		require.Len(t, tree.Subfolders, 1)
		assert.Equal(t, "c", tree.Subfolders[0].Name)
		assert.Len(t, tree.Subfolders[0].Documents, 2)
		_, documents := countTree(tree)
		assert.Equal(t, 2, documents)
	})

	t.Run("whole tree", func(t *testing.T) {
		tree, err := svc.GetFolderTree(ctx, "user-1", "/a/")
		require.NoError(t, err)

		folders, documents := countTree(tree)
		assert.Equal(t, 4, folders)
		assert.Equal(t, 3, documents)
		require.Len(t, tree.Subfolders, 2)
		assert.Equal(t, "a/b", tree.Subfolders[0].Path)
		assert.Equal(t, "a/d", tree.Subfolders[1].Path)
		assert.NotNil(t, tree.Subfolders[1].Documents)
	})

	t.Run("missing middle segment", func(t *testing.T) {
		_, err := svc.GetFolderTree(ctx, "user-1", "a/x/c")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("other owner sees nothing", func(t *testing.T) {
		_, err := svc.GetFolderTree(ctx, "user-2", "a")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := svc.GetFolderTree(ctx, "user-1", "")
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}
