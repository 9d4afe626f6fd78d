// Package httpapi exposes the blob gateway over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
)

const (
	formFileField      = "file"
	defaultContentType = "application/octet-stream"
	healthCheckTimeout = 5 * time.Second
)

// Handler serves gateway operations
type Handler struct {
	gateway        *blobx.Gateway
	checks         []core.Check
	logger         logx.Logger
	maxUploadBytes int64
}

// NewHandler creates a handler. A non-positive maxUploadBytes disables the
// request size limit.
func NewHandler(gw *blobx.Gateway, checks []core.Check, logger logx.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = logx.NewNoopLogger()
	}
	return &Handler{
		gateway:        gw,
		checks:         checks,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

type uploadResponse struct {
	ID uuid.UUID `json:"id"`
}

type directUploadResponse struct {
	Provider blobx.Provider `json:"provider"`
	Bucket   string         `json:"bucket_name"`
	Key      string         `json:"key_name"`
}

// GetObject handles GET /api/objects/{id}
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	obj, err := h.gateway.GetObject(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.streamObject(w, r, obj)
}

// UploadObject handles POST /api/buckets/{bucket}/objects
func (h *Handler) UploadObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")

	var provider blobx.Provider
	if raw := r.URL.Query().Get("provider"); raw != "" {
		p, err := blobx.ParseProvider(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		provider = p
	}

	part, err := h.filePart(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer part.Close()

	contentType := partContentType(part)

	var id uuid.UUID
	if provider != "" {
		id, err = h.gateway.UploadObjectTo(r.Context(), provider, bucket, part.FileName(), part, contentType)
	} else {
		id, err = h.gateway.UploadObject(r.Context(), bucket, part.FileName(), part, contentType)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{ID: id})
}

// DeleteObject handles DELETE /api/objects/{id}
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.gateway.DeleteObject(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMetadata handles GET /api/metadata
func (h *Handler) ListMetadata(w http.ResponseWriter, r *http.Request) {
	records, err := h.gateway.ListObjectMetadata(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []blobx.ObjectMetadata{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetMetadata handles GET /api/metadata/{id}
func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	meta, err := h.gateway.GetObjectMetadata(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// UpdateMetadata handles PUT /api/metadata/{id}
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var loc blobx.Location
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&loc); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err))
		return
	}

	meta, err := h.gateway.UpdateObjectMetadata(r.Context(), id, loc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// GetDirect handles GET /api/providers/{provider}/objects/{key}
func (h *Handler) GetDirect(w http.ResponseWriter, r *http.Request) {
	provider, err := blobx.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	obj, err := h.gateway.GetDirect(r.Context(), provider, r.URL.Query().Get("bucket"), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.streamObject(w, r, obj)
}

// UploadDirect handles POST /api/providers/{provider}/objects. The object
// key is the uploaded file name.
func (h *Handler) UploadDirect(w http.ResponseWriter, r *http.Request) {
	provider, err := blobx.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	part, err := h.filePart(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer part.Close()

	bucket := r.URL.Query().Get("bucket")
	key := part.FileName()
	if err := h.gateway.UploadDirect(r.Context(), provider, bucket, key, part, partContentType(part)); err != nil {
		h.writeError(w, r, err)
		return
	}

	if bucket == "" {
		bucket, _ = h.gateway.Registry().DefaultBucket(provider)
	}
	writeJSON(w, http.StatusCreated, directUploadResponse{Provider: provider, Bucket: bucket, Key: key})
}

// DeleteDirect handles DELETE /api/providers/{provider}/objects/{key}
func (h *Handler) DeleteDirect(w http.ResponseWriter, r *http.Request) {
	provider, err := blobx.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.gateway.DeleteDirect(r.Context(), provider, r.URL.Query().Get("bucket"), chi.URLParam(r, "key")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Providers []blobx.Provider  `json:"providers"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health handles GET /healthz by running every readiness check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Providers: h.gateway.Registry().Providers(),
		Checks:    make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK

	for _, check := range h.checks {
		if check == nil || check.Kind() != core.Readiness {
			continue
		}
		if err := check.Check(ctx); err != nil {
			resp.Checks[check.Name()] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name()] = "ok"
	}

	writeJSON(w, status, resp)
}

func (h *Handler) streamObject(w http.ResponseWriter, r *http.Request, obj *blobx.StoredObject) {
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.FileName}))
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		// Headers are already sent; the client sees a truncated body.
		h.logger.Warn("Failed to stream object", blobx.ArgsToFields(
			"path", r.URL.Path,
			"file_name", obj.FileName,
			"error", err,
		)...)
	}
}

// filePart returns the "file" part of a multipart request without buffering
// the whole form.
func (h *Handler) filePart(w http.ResponseWriter, r *http.Request) (*multipart.Part, error) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected multipart/form-data: %v", errBadRequest, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing %q form field", errBadRequest, formFileField)
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: malformed multipart body: %v", errBadRequest, err)
		}
		if part.FormName() != formFileField {
			_ = part.Close()
			continue
		}
		if part.FileName() == "" {
			_ = part.Close()
			return nil, fmt.Errorf("%w: %q form field has no file name", errBadRequest, formFileField)
		}
		return part, nil
	}
}

func partContentType(part *multipart.Part) string {
	if ct := part.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return defaultContentType
}

func parseID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}
