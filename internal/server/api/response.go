package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/cutout/internal/common"
)

const (
	msgCredentialsRequired = "Email and password are required"
	msgEmailTaken          = "Email already exists"
	msgInvalidCredentials  = "Invalid credentials"
	msgUserNotFound        = "User not found"
	msgAPIKeyRequired      = "API key is required"
	msgInvalidAPIKey       = "Invalid API key"
	msgImageRequired       = "Image file is required"
	msgProcessingFailed    = "Failed to process image"
	msgInternal            = "Internal server error"
	msgUnauthorized        = "Unauthorized"
	msgForbidden           = "Forbidden"
	msgNotFound            = "Not found"
	msgNotReady            = "not ready"
	msgNotConfigured       = "Export storage is not configured"
	msgTooLarge            = "Upload is too large"
	msgRateLimited         = "Rate limit exceeded"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResponse{Message: msg})
}

// errorStatus maps a service error to a status and a client-safe message.
func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, common.ErrorNotReady):
		return http.StatusConflict, msgNotReady
	case errors.Is(err, common.ErrorNotConfigured):
		return http.StatusNotImplemented, msgNotConfigured
	case errors.Is(err, common.ErrorUpstream):
		return http.StatusInternalServerError, msgProcessingFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage strips the sentinel prefix, leaving the detail.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, common.ErrorValidation.Error()+": "); i >= 0 {
		msg = msg[i+len(common.ErrorValidation.Error())+2:]
	}
	if msg == "" || msg == common.ErrorValidation.Error() {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
