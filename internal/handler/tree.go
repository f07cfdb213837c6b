package handler

import (
	"log/slog"
	"net/http"

	docsysSvc "docusight/internal/domain/services/docsystem"
	"docusight/internal/httputil"
)

// TreeHandler handles HTTP requests for tree operations
type TreeHandler struct {
	treeService docsysSvc.TreeService
	logger      *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(treeService docsysSvc.TreeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		treeService: treeService,
		logger:      logger,
	}
}

// GetTree returns the nested folder/document tree under a folder path.
// GET /api/folders/tree?path=reviews/2024
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	ownerID := httputil.GetOwnerID(r)

	tree, err := h.treeService.GetFolderTree(r.Context(), ownerID, path)
	if err != nil {
		handleError(w, h.logger, err, "failed to load folder tree")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}
