package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"docusight/internal/domain"
	"docusight/internal/domain/models"
	"docusight/internal/httputil"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(token string) (*models.OwnerClaims, error) {
	owner, ok := v[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return &models.OwnerClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: owner}}, nil
}

func (v staticVerifier) Close() error { return nil }

func echoOwner() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, httputil.GetOwnerID(r))
	})
}

func TestAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		verifier   staticVerifier
		path       string
		headers    map[string]string
		wantStatus int
		wantOwner  string
	}{
		{"dev header", nil, "/api/folders/tree", map[string]string{OwnerHeader: "dev-owner"}, http.StatusOK, "dev-owner"},
		{"dev header missing", nil, "/api/folders/tree", nil, http.StatusUnauthorized, ""},
		{"bearer token", staticVerifier{"tok": "owner-1"}, "/api/ingest", map[string]string{"Authorization": "Bearer tok"}, http.StatusOK, "owner-1"},
		{"header ignored with verifier", staticVerifier{"tok": "owner-1"}, "/api/ingest", map[string]string{OwnerHeader: "owner-1"}, http.StatusUnauthorized, ""},
		{"invalid token", staticVerifier{"tok": "owner-1"}, "/api/ingest", map[string]string{"Authorization": "Bearer other"}, http.StatusUnauthorized, ""},
		{"public path", staticVerifier{}, "/health", nil, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verifierArg = Auth(nil, logger, "/health")
			if tt.verifier != nil {
				verifierArg = Auth(tt.verifier, logger, "/health")
			}
			h := verifierArg(echoOwner())

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantOwner, rec.Body.String())
			} else {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ingest", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
