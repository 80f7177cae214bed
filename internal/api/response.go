package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// errorBody is the error payload the client expects. The HTTP status
// itself stays 200; clients read status_code from the body.
type errorBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps a domain error onto the client's error body.
func writeError(w http.ResponseWriter, err error) {
	logger.Warn("request failed", "error", err)
	writeJSON(w, errorBody{
		Error:      http.StatusText(statusFor(err)),
		StatusCode: statusFor(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrTokenMissing):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrTokenNotFound):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAccessDenied), errors.Is(err, models.ErrInvalidKeyHash):
		return http.StatusForbidden
	case errors.Is(err, models.ErrVaultNotFound), errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrRecordNotFound), errors.Is(err, blob.ErrBlobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
