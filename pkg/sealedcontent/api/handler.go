// Package api exposes the sealed content service over HTTP using chi.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// multipartSlack is allowed on top of the file ceiling for multipart framing.
const multipartSlack int64 = 1 << 20

// Handler serves the upload, retrieval and account endpoints
type Handler struct {
	service       sealedcontent.Service
	maxUploadSize int64
	logger        *slog.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithMaxUploadSize sets the file size ceiling used to bound request bodies.
// It should match the service's own ceiling.
func WithMaxUploadSize(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxUploadSize = n
	}
}

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(service sealedcontent.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:       service,
		maxUploadSize: sealedcontent.DefaultMaxFileSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for the v1 API. Mount it under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.With(NoCache).Get("/uploads/{object_id}", h.Fetch)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.service))
		r.With(RequestSizeLimit(h.maxUploadSize+multipartSlack)).Post("/upload", h.Upload)
		r.Get("/uploads", h.ListOwned)
		r.Delete("/uploads/{object_id}", h.DeleteOwned)
	})

	return r
}

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountResponse is returned by register and login. The token is shown so
// clients can authenticate uploads.
type AccountResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	Privilege int       `json:"privilege"`
	CreatedAt time.Time `json:"created_at"`
}

func accountResponse(a *sealedcontent.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		Username:  a.Username,
		Token:     a.Token,
		Privilege: a.Privilege,
		CreatedAt: a.CreatedAt,
	}
}

// UploadResponse carries the capability URLs for a new object
type UploadResponse struct {
	FileURL   string `json:"file_url"`
	DeleteURL string `json:"delete_url,omitempty"`
}

// ObjectResponse describes one owned object. Keys are never included.
type ObjectResponse struct {
	ObjectID     string    `json:"object_id"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Register creates an account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Username and password are required.")
		return
	}

	account, err := h.service.Register(r.Context(), sealedcontent.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to register account", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, accountResponse(account))
}

// Login exchanges a username and password for the account token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	account, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, "Failed to log in", err)
		return
	}
	render.JSON(w, r, accountResponse(account))
}

// Upload encrypts and stores the multipart field "file"
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			writeError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.logger.Error("Failed to read upload", "error", err)
		writeError(w, r, http.StatusBadRequest, "A multipart field named file is required.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			writeError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.logger.Error("Failed to read upload body", "error", err)
		writeError(w, r, http.StatusBadRequest, "Failed to read upload.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	result, err := h.service.Upload(r.Context(), owner, sealedcontent.UploadRequest{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to upload file", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{FileURL: result.FileURL, DeleteURL: result.DeleteURL})
}

// Fetch returns decrypted content, or redeems a delete key
func (h *Handler) Fetch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.service.Fetch(r.Context(), sealedcontent.FetchRequest{
		ObjectID:     chi.URLParam(r, "object_id"),
		Key:          query.Get("key"),
		DeleteKey:    query.Get("delete_key"),
		HasDeleteKey: query.Has("delete_key"),
	})
	if err != nil {
		fetchFailuresTotal.WithLabelValues(fetchFailureReason(err)).Inc()
		h.writeServiceError(w, r, "Failed to fetch file", err)
		return
	}

	if result.Deleted {
		render.JSON(w, r, MessageResponse{Message: "File deleted successfully."})
		return
	}

	disposition := mime.FormatMediaType("inline", map[string]string{"filename": result.Object.OriginalName})
	if disposition == "" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", result.Object.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		h.logger.Error("Failed to write file response", "object_id", result.Object.ID, "error", err)
	}
}

// isBodyTooLarge reports whether err came from the request size limit. The
// multipart reader does not always wrap the underlying error.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// ListOwned returns metadata for the caller's objects
func (h *Handler) ListOwned(w http.ResponseWriter, r *http.Request) {
	owner, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	objects, err := h.service.ListOwned(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list files", err)
		return
	}

	resp := make([]ObjectResponse, 0, len(objects))
	for _, o := range objects {
		resp = append(resp, ObjectResponse{
			ObjectID:     o.ID,
			OriginalName: o.OriginalName,
			ContentType:  o.ContentType,
			SizeBytes:    o.SizeBytes,
			CreatedAt:    o.CreatedAt,
		})
	}
	render.JSON(w, r, resp)
}

// DeleteOwned removes one of the caller's objects
func (h *Handler) DeleteOwned(w http.ResponseWriter, r *http.Request) {
	owner, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	if err := h.service.DeleteOwned(r.Context(), owner, chi.URLParam(r, "object_id")); err != nil {
		h.writeServiceError(w, r, "Failed to delete file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
