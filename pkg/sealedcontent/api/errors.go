package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Messages shown to clients. Every access failure that could reveal whether
// an object exists shares msgInaccessible.
const (
	msgInaccessible    = "file not found or inaccessible"
	msgMissingKey      = "No decryption key was provided."
	msgTampered        = "The file has either been tampered with or is corrupted."
	msgUnsupportedType = "The file type is not allowed."
	msgTooLarge        = "The file is too large to upload."
	msgUnauthorized    = "Unauthorized."
	msgUsernameTaken   = "Username is already taken."
	msgBadCredentials  = "Invalid username or password."
	msgInternal        = "An internal error occurred."
)

// statusFor maps a service error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	var verr *sealedcontent.ValidationError
	switch {
	case errors.Is(err, sealedcontent.ErrMissingKey):
		return http.StatusBadRequest, msgMissingKey
	case errors.Is(err, sealedcontent.ErrNotFound),
		errors.Is(err, sealedcontent.ErrOrphaned),
		errors.Is(err, sealedcontent.ErrInvalidKeyOrTampered),
		errors.Is(err, sealedcontent.ErrInvalidCapability):
		return http.StatusNotFound, msgInaccessible
	case errors.Is(err, sealedcontent.ErrTamperedOrCorrupted):
		return http.StatusBadRequest, msgTampered
	case errors.Is(err, sealedcontent.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, msgUnsupportedType
	case errors.Is(err, sealedcontent.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, sealedcontent.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, sealedcontent.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, sealedcontent.ErrUsernameTaken):
		return http.StatusConflict, msgUsernameTaken
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// writeServiceError logs the precise error and writes its mapped response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, message := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg, "status", status, "error", err)
	writeError(w, r, status, message)
}
