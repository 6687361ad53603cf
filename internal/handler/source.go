package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/middleware"
	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/service"
)

// allowedUploadMimeTypes is the set of accepted upload content types per §6.
var allowedUploadMimeTypes = map[string]model.SourceType{
	"application/pdf": model.SourceTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": model.SourceTypeDOCX,
	"text/plain": model.SourceTypeText,
}

// SourceStore abstracts source CRUD for testability.
type SourceStore interface {
	Create(ctx context.Context, s *model.Source) error
	Get(ctx context.Context, botID, id string) (*model.Source, error)
	ListByBot(ctx context.Context, botID string) ([]*model.Source, error)
	Delete(ctx context.Context, botID, id string) error
}

// ObjectUploader abstracts object-store writes for testability.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// SourceDeps bundles dependencies for the source handlers.
type SourceDeps struct {
	Access  *service.AccessService
	Sources SourceStore
	Objects interface {
		ObjectUploader
		ObjectDeleter
	}
	Queue          service.JobQueue
	MaxUploadBytes int64
}

func objectKey(botID, sourceID, filename string) string {
	return fmt.Sprintf("bots/%s/sources/%s/%s", botID, sourceID, filename)
}

// UploadSource handles POST /api/v1/bots/{id}/sources/upload (multipart).
func UploadSource(deps SourceDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeErr(w, apperr.New(apperr.PayloadTooLarge, "file exceeds upload size limit"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeBadRequest(w, "multipart field \"file\" is required")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		sourceType, ok := allowedUploadMimeTypes[contentType]
		if !ok {
			writeErr(w, apperr.New(apperr.UnsupportedFormat, fmt.Sprintf("unsupported content type %q", contentType)))
			return
		}
		if header.Size > deps.MaxUploadBytes {
			writeErr(w, apperr.New(apperr.PayloadTooLarge, "file exceeds 50MB limit"))
			return
		}
		if header.Size == 0 {
			writeErr(w, apperr.New(apperr.EmptyContent, "uploaded file is empty"))
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeErr(w, fmt.Errorf("handler.UploadSource: read file: %w", err))
			return
		}

		filename := filepath.Base(header.Filename)
		size := int64(len(data))
		mime := contentType
		src := &model.Source{
			ID:         uuid.New().String(),
			BotID:      botID,
			SourceType: sourceType,
			Filename:   &filename,
			FileSize:   &size,
			MimeType:   &mime,
			Status:     model.SourceStatusUploaded,
		}

		key := objectKey(botID, src.ID, filename)
		if err := deps.Objects.Upload(r.Context(), key, data); err != nil {
			writeErr(w, fmt.Errorf("handler.UploadSource: store bytes: %w", err))
			return
		}
		src.StoragePath = key
		if err := deps.Sources.Create(r.Context(), src); err != nil {
			writeErr(w, err)
			return
		}

		if err := deps.Queue.Enqueue(r.Context(), service.IngestJob{BotID: botID, SourceID: src.ID}); err != nil {
			writeErr(w, fmt.Errorf("handler.UploadSource: enqueue: %w", err))
			return
		}

		writeData(w, http.StatusAccepted, src)
	}
}

// SubmitURLRequest is the POST /bots/{id}/sources/url request body.
type SubmitURLRequest struct {
	URL string `json:"url"`
}

// SubmitURLSource handles POST /api/v1/bots/{id}/sources/url.
func SubmitURLSource(deps SourceDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		var req SubmitURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		parsed, err := url.Parse(req.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			writeBadRequest(w, "url must be an absolute http(s) URL")
			return
		}

		src := &model.Source{
			BotID:       botID,
			SourceType:  model.SourceTypeHTML,
			OriginalURL: &req.URL,
			Status:      model.SourceStatusUploaded,
		}
		if err := deps.Sources.Create(r.Context(), src); err != nil {
			writeErr(w, err)
			return
		}

		if err := deps.Queue.Enqueue(r.Context(), service.IngestJob{BotID: botID, SourceID: src.ID}); err != nil {
			writeErr(w, fmt.Errorf("handler.SubmitURLSource: enqueue: %w", err))
			return
		}

		writeData(w, http.StatusAccepted, src)
	}
}

// ListSources handles GET /api/v1/bots/{id}/sources.
func ListSources(deps SourceDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		sources, err := deps.Sources.ListByBot(r.Context(), botID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, sources)
	}
}

// GetSource handles GET /api/v1/bots/{id}/sources/{sid}.
func GetSource(deps SourceDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		sourceID := chi.URLParam(r, "sid")
		if !requireValidID(w, sourceID, "sid") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		src, err := deps.Sources.Get(r.Context(), botID, sourceID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, src)
	}
}

// DeleteSource handles DELETE /api/v1/bots/{id}/sources/{sid}. The database
// cascade removes chunks; object bytes are removed here since the object
// store does not participate in the relational cascade.
func DeleteSource(deps SourceDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		sourceID := chi.URLParam(r, "sid")
		if !requireValidID(w, sourceID, "sid") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		src, err := deps.Sources.Get(r.Context(), botID, sourceID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if src.StoragePath != "" {
			if err := deps.Objects.Delete(r.Context(), src.StoragePath); err != nil {
				_ = err // best-effort: the row delete below is the source of truth
			}
		}
		if err := deps.Sources.Delete(r.Context(), botID, sourceID); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": sourceID})
	}
}
