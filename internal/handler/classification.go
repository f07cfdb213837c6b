package handler

import (
	"log/slog"
	"net/http"

	docsysSvc "docusight/internal/domain/services/docsystem"
	"docusight/internal/httputil"
)

// ClassificationHandler handles sentiment classification requests
type ClassificationHandler struct {
	classificationService docsysSvc.ClassificationService
	logger                *slog.Logger
}

// NewClassificationHandler creates a new classification handler
func NewClassificationHandler(classificationService docsysSvc.ClassificationService, logger *slog.Logger) *ClassificationHandler {
	return &ClassificationHandler{
		classificationService: classificationService,
		logger:                logger,
	}
}

// ClassifyFolder classifies every unclassified document in a folder.
// POST /api/classifications/folder?folder_path=reviews&recursive=true
//
// Query parameters:
//   - folder_path: required
//   - recursive: optional, defaults to true
func (h *ClassificationHandler) ClassifyFolder(w http.ResponseWriter, r *http.Request) {
	folderPath := r.URL.Query().Get("folder_path")
	if folderPath == "" {
		httputil.RespondError(w, http.StatusBadRequest, "folder_path query parameter is required")
		return
	}

	recursive, err := httputil.QueryBool(r, "recursive", true)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.classificationService.ClassifyFolder(r.Context(), &docsysSvc.ClassifyFolderRequest{
		OwnerID:    httputil.GetOwnerID(r),
		FolderPath: folderPath,
		Recursive:  recursive,
	})
	if err != nil {
		handleError(w, h.logger, err, "sentiment classification failed")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
