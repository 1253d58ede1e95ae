package handler

import (
	"errors"
	"net/http"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

// WriteError answers a failed request. Collaborator failures are forwarded
// with their original status and body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeTokenError(w, r, err, "")
}

// WriteAccessError answers a request rejected while authenticating its
// access token.
func WriteAccessError(w http.ResponseWriter, r *http.Request, err error) {
	writeTokenError(w, r, err, models.TokenKindAccess)
}

func writeTokenError(w http.ResponseWriter, r *http.Request, err error, kind models.TokenKind) {
	var collab *pkgerrors.CollaboratorError
	if errors.As(err, &collab) {
		contentType := collab.ContentType
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(collab.Status)
		w.Write(collab.Body)
		return
	}

	status, detail := statusFor(err, kind)
	if status >= http.StatusInternalServerError {
		observability.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Kind: pkgerrors.Kind(err), Detail: detail})
}

func statusFor(err error, kind models.TokenKind) (int, string) {
	switch {
	case errors.Is(err, pkgerrors.ErrSessionRevoked):
		return http.StatusForbidden, "Invalid token, please login again."
	case errors.Is(err, pkgerrors.ErrExpired):
		if kind == models.TokenKindAccess {
			return http.StatusUnauthorized, "Expired access token"
		}
		return http.StatusBadRequest, "Expired refresh token"
	case errors.Is(err, pkgerrors.ErrBadSignature):
		return http.StatusBadRequest, "Signature verification failed"
	case errors.Is(err, pkgerrors.ErrSchemeMismatch):
		return http.StatusBadRequest, "Invalid authentication scheme"
	case errors.Is(err, pkgerrors.ErrMalformed):
		switch kind {
		case models.TokenKindAccess:
			return http.StatusBadRequest, "Invalid access token"
		case models.TokenKindRefresh:
			return http.StatusBadRequest, "Invalid refresh token"
		}
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pkgerrors.ErrNoCredentials):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, pkgerrors.ErrTimeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, pkgerrors.ErrUpstreamResponse):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, pkgerrors.ErrNotConfigured):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
