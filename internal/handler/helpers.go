package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"docusight/internal/domain"
	"docusight/internal/httputil"
)

// handleError converts domain errors to HTTP responses.
// Anything that is not a caller error is logged and answered with
// internalDetail so pipeline internals never leak to the client.
func handleError(w http.ResponseWriter, logger *slog.Logger, err error, internalDetail string) {
	var conflictErr *domain.ConflictError

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondError(w, http.StatusConflict, conflictErr.Error())
	default:
		logger.Error(internalDetail, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, internalDetail)
	}
}
