package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/cmazet/ragchat/internal/activity"
	"github.com/cmazet/ragchat/internal/knowledge"
	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/provider"
)

// maxUploadBytes bounds document uploads.
const maxUploadBytes = 10 << 20

// DocumentStore is the slice of the knowledge store the handler uses.
// *knowledge.Store satisfies this.
type DocumentStore interface {
	Ingest(ctx context.Context, embedder provider.Embedder, ownerID, filename string, data []byte, requestPublic, privileged bool) (knowledge.IngestResult, error)
	List(ctx context.Context, ownerID string) ([]knowledge.Document, error)
	Delete(ctx context.Context, docID uuid.UUID, requesterID string, privileged bool) error
}

// ActivityRecorder records audit entries for document operations.
// *activity.Recorder satisfies this. Best effort, may be nil.
type ActivityRecorder interface {
	Record(ctx context.Context, userID, activityType string, details any)
}

// DocumentHandler handles document upload, list and delete endpoints.
type DocumentHandler struct {
	store    DocumentStore
	embedder provider.Embedder
	activity ActivityRecorder
	logger   log.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(store DocumentStore, embedder provider.Embedder, recorder ActivityRecorder, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, embedder: embedder, activity: recorder, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.upload)
	mux.HandleFunc("GET /api/documents", h.list)
	mux.HandleFunc("DELETE /api/documents/{id}", h.delete)
}

func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	userID, privileged, ok := requireUser(h.logger, w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "missing file field", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "unreadable upload", err.Error())
		return
	}

	requestPublic := r.FormValue("is_public") == "true"

	result, err := h.store.Ingest(r.Context(), h.embedder, userID, header.Filename, data, requestPublic, privileged)
	if err != nil {
		h.writeDocumentError(w, r, err)
		return
	}

	if h.activity != nil {
		h.activity.Record(r.Context(), userID, activity.TypeDocumentUpload, map[string]any{
			"filename":       result.Document.Filename,
			"chunks_created": result.ChunkCount,
			"is_public":      result.Document.IsPublic,
		})
	}

	writeJSON(h.logger, w, http.StatusCreated, result)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(h.logger, w, r)
	if !ok {
		return
	}

	docs, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.writeDocumentError(w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, privileged, ok := requireUser(h.logger, w, r)
	if !ok {
		return
	}

	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid document id", err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), docID, userID, privileged); err != nil {
		h.writeDocumentError(w, r, err)
		return
	}

	if h.activity != nil {
		h.activity.Record(r.Context(), userID, activity.TypeDocumentDelete, map[string]any{
			"document_id": docID.String(),
		})
	}

	writeJSON(h.logger, w, http.StatusOK, map[string]any{"deleted": docID})
}

// writeDocumentError maps knowledge store failures onto HTTP status codes.
func (h *DocumentHandler) writeDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("document request failed", "path", r.URL.Path, "error", err)

	switch {
	case errors.Is(err, knowledge.ErrDocumentNotFound):
		writeError(h.logger, w, http.StatusNotFound, "document not found", err.Error())
	case errors.Is(err, knowledge.ErrNotOwner):
		writeError(h.logger, w, http.StatusForbidden, "not the owner", err.Error())
	case errors.Is(err, knowledge.ErrDocumentLimit):
		writeError(h.logger, w, http.StatusConflict, "document limit reached", err.Error())
	case errors.Is(err, knowledge.ErrUnsupportedFormat), errors.Is(err, knowledge.ErrEmptyDocument):
		writeError(h.logger, w, http.StatusBadRequest, "unprocessable document", err.Error())
	case errors.Is(err, provider.ErrBudgetExceeded):
		writeError(h.logger, w, http.StatusPaymentRequired, "budget exceeded", err.Error())
	case errors.Is(err, provider.ErrProvider):
		writeError(h.logger, w, http.StatusBadGateway, "model provider failed", err.Error())
	case errors.Is(err, knowledge.ErrStore):
		writeError(h.logger, w, http.StatusServiceUnavailable, "storage unavailable", err.Error())
	default:
		writeError(h.logger, w, http.StatusInternalServerError, "document operation failed", err.Error())
	}
}
