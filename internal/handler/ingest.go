package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	docsysSvc "docusight/internal/domain/services/docsystem"
	"docusight/internal/httputil"
)

// archiveField is the multipart field carrying the zip archive
const archiveField = "archive"

// IngestHandler handles archive uploads
type IngestHandler struct {
	ingestService docsysSvc.IngestService
	logger        *slog.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestService docsysSvc.IngestService, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

// Ingest unpacks an uploaded archive into a folder tree.
// POST /api/ingest?recursive=true
//
// The archive part is streamed straight to the staging area; the request
// body is never buffered in memory. Returns 201 with the new tree, or 200
// with the existing tree when the archive's root folder was ingested before.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	recursive, err := httputil.QueryBool(r, "recursive", true)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}

	ownerID := httputil.GetOwnerID(r)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "failed to read multipart body")
			return
		}
		if part.FormName() != archiveField {
			_ = part.Close()
			continue
		}

		h.logger.Info("ingest started",
			"owner_id", ownerID,
			"archive", part.FileName(),
			"recursive", recursive,
		)

		result, err := h.ingestService.Ingest(r.Context(), &docsysSvc.IngestRequest{
			OwnerID:     ownerID,
			ArchiveName: part.FileName(),
			Archive:     part,
			Recursive:   recursive,
		})
		_ = part.Close()
		if err != nil {
			handleError(w, h.logger, err, "failed to process archive")
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		h.logger.Info("ingest complete",
			"owner_id", ownerID,
			"root", result.Tree.Path,
			"created", result.Created,
			"folders", result.FolderCount,
			"documents", result.DocumentCount,
		)
		httputil.RespondJSON(w, status, result.Tree)
		return
	}

	httputil.RespondError(w, http.StatusBadRequest, archiveField+" file field is required")
}
