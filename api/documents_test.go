package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/cmazet/ragchat/internal/activity"
	"github.com/cmazet/ragchat/internal/knowledge"
	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/provider"
)

type fakeDocumentStore struct {
	result knowledge.IngestResult
	docs   []knowledge.Document
	err    error

	gotOwner      string
	gotFilename   string
	gotData       []byte
	gotPublic     bool
	gotPrivileged bool
	deletedID     uuid.UUID
}

func (f *fakeDocumentStore) Ingest(_ context.Context, _ provider.Embedder, ownerID, filename string, data []byte, requestPublic, privileged bool) (knowledge.IngestResult, error) {
	f.gotOwner = ownerID
	f.gotFilename = filename
	f.gotData = data
	f.gotPublic = requestPublic
	f.gotPrivileged = privileged
	if f.err != nil {
		return knowledge.IngestResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeDocumentStore) List(context.Context, string) ([]knowledge.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, docID uuid.UUID, _ string, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.deletedID = docID
	return nil
}

type nopEmbedder struct{}

func (nopEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{0}, nil
}

type fakeRecorder struct {
	userID string
	types  []string
	detail map[string]any
}

func (f *fakeRecorder) Record(_ context.Context, userID, activityType string, details any) {
	f.userID = userID
	f.types = append(f.types, activityType)
	f.detail, _ = details.(map[string]any)
}

func documentMux(t *testing.T, store DocumentStore) *http.ServeMux {
	t.Helper()
	return documentMuxWithActivity(t, store, nil)
}

func documentMuxWithActivity(t *testing.T, store DocumentStore, recorder ActivityRecorder) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewDocumentHandler(store, nopEmbedder{}, recorder, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func multipartUpload(t *testing.T, filename, content string, isPublic bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if isPublic {
		if err := mw.WriteField("is_public", "true"); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	store := &fakeDocumentStore{result: knowledge.IngestResult{ChunkCount: 3}}
	mux := documentMux(t, store)

	body, contentType := multipartUpload(t, "notes.txt", "document text", true)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(userIDHeader, "alice")
	req.Header.Set(adminHeader, "true")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if store.gotOwner != "alice" || store.gotFilename != "notes.txt" {
		t.Errorf("ingest called with owner=%q filename=%q", store.gotOwner, store.gotFilename)
	}
	if string(store.gotData) != "document text" {
		t.Errorf("data = %q", store.gotData)
	}
	if !store.gotPublic || !store.gotPrivileged {
		t.Errorf("public=%v privileged=%v, want both true", store.gotPublic, store.gotPrivileged)
	}

	var result knowledge.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if result.ChunkCount != 3 {
		t.Errorf("ChunkCount = %d, want 3", result.ChunkCount)
	}
}

func TestUploadEndpoint_UnprivilegedUser(t *testing.T) {
	store := &fakeDocumentStore{}
	mux := documentMux(t, store)

	body, contentType := multipartUpload(t, "notes.txt", "text", true)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(userIDHeader, "bob")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	// The public request passes through; the store decides it cannot take
	// effect without privilege.
	if !store.gotPublic || store.gotPrivileged {
		t.Errorf("public=%v privileged=%v", store.gotPublic, store.gotPrivileged)
	}
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	mux := documentMux(t, &fakeDocumentStore{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(userIDHeader, "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"limit reached", knowledge.ErrDocumentLimit, http.StatusConflict},
		{"unsupported format", knowledge.ErrUnsupportedFormat, http.StatusBadRequest},
		{"empty document", knowledge.ErrEmptyDocument, http.StatusBadRequest},
		{"budget exceeded", provider.ErrBudgetExceeded, http.StatusPaymentRequired},
		{"provider failure", provider.ErrProvider, http.StatusBadGateway},
		{"store unavailable", knowledge.ErrStore, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := documentMux(t, &fakeDocumentStore{err: tt.err})
			body, contentType := multipartUpload(t, "notes.txt", "text", false)
			req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set(userIDHeader, "alice")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestListEndpoint(t *testing.T) {
	store := &fakeDocumentStore{docs: []knowledge.Document{
		{ID: uuid.New(), Filename: "one.txt"},
		{ID: uuid.New(), Filename: "two.txt"},
	}}
	mux := documentMux(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set(userIDHeader, "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Documents []knowledge.Document `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if len(payload.Documents) != 2 {
		t.Errorf("documents = %d, want 2", len(payload.Documents))
	}
}

func TestDeleteEndpoint(t *testing.T) {
	store := &fakeDocumentStore{}
	mux := documentMux(t, store)

	docID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID.String(), nil)
	req.Header.Set(userIDHeader, "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.deletedID != docID {
		t.Errorf("deleted %s, want %s", store.deletedID, docID)
	}
}

func TestDeleteEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name       string
		docID      string
		err        error
		wantStatus int
	}{
		{"invalid id", "not-a-uuid", nil, http.StatusBadRequest},
		{"not found", uuid.NewString(), knowledge.ErrDocumentNotFound, http.StatusNotFound},
		{"not owner", uuid.NewString(), knowledge.ErrNotOwner, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := documentMux(t, &fakeDocumentStore{err: tt.err})
			req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+tt.docID, nil)
			req.Header.Set(userIDHeader, "alice")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestUploadEndpoint_RecordsActivity(t *testing.T) {
	store := &fakeDocumentStore{result: knowledge.IngestResult{
		Document:   knowledge.Document{Filename: "notes.txt", IsPublic: true},
		ChunkCount: 3,
	}}
	recorder := &fakeRecorder{}
	mux := documentMuxWithActivity(t, store, recorder)

	body, contentType := multipartUpload(t, "notes.txt", "document text", true)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(userIDHeader, "alice")
	req.Header.Set(adminHeader, "true")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if recorder.userID != "alice" {
		t.Errorf("recorded user = %q, want alice", recorder.userID)
	}
	if len(recorder.types) != 1 || recorder.types[0] != activity.TypeDocumentUpload {
		t.Fatalf("recorded types = %v, want [%s]", recorder.types, activity.TypeDocumentUpload)
	}
	if recorder.detail["filename"] != "notes.txt" || recorder.detail["chunks_created"] != 3 {
		t.Errorf("details = %v", recorder.detail)
	}
}

func TestUploadEndpoint_NoActivityOnFailure(t *testing.T) {
	store := &fakeDocumentStore{err: knowledge.ErrDocumentLimit}
	recorder := &fakeRecorder{}
	mux := documentMuxWithActivity(t, store, recorder)

	body, contentType := multipartUpload(t, "notes.txt", "text", false)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(userIDHeader, "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(recorder.types) != 0 {
		t.Errorf("recorded types = %v, want none", recorder.types)
	}
}

func TestDeleteEndpoint_RecordsActivity(t *testing.T) {
	store := &fakeDocumentStore{}
	recorder := &fakeRecorder{}
	mux := documentMuxWithActivity(t, store, recorder)

	docID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID.String(), nil)
	req.Header.Set(userIDHeader, "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(recorder.types) != 1 || recorder.types[0] != activity.TypeDocumentDelete {
		t.Fatalf("recorded types = %v, want [%s]", recorder.types, activity.TypeDocumentDelete)
	}
	if recorder.detail["document_id"] != docID.String() {
		t.Errorf("details = %v", recorder.detail)
	}
}
