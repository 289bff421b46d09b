package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yuvalr-dev/librarium/internal/api/middlewares"
	"github.com/yuvalr-dev/librarium/internal/auth"
	"github.com/yuvalr-dev/librarium/internal/config"
	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/core/objectstore"
	"github.com/yuvalr-dev/librarium/internal/models"
	"github.com/yuvalr-dev/librarium/internal/pipeline"
)

type DocumentHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	ingestor     *pipeline.DocumentIngestor
	gate         *auth.Gate
	cfg          *config.Config
}

func NewDocumentHandler(dbclient core.DbClient, objectclient core.ObjectClient, ing *pipeline.DocumentIngestor, gate *auth.Gate, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, objectclient: objectclient, ingestor: ing, gate: gate, cfg: cfg}
}

// Upload accepts a multipart file for a workspace, stores it in S3,
// records the document as pending and queues it for ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")

	if err := h.gate.CanAccess(r.Context(), caller, workspaceID); err != nil {
		writeAuthErr(w, err)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Strip path components so the filename cannot escape its prefix.
	// The key carries no per-upload component: re-uploading the same
	// filename lands on the same storage path, so the document row is
	// reused and its chunks replaced instead of duplicated.
	cleanFilename := filepath.Base(header.Filename)
	s3Key := fmt.Sprintf("%s/%s", workspaceID, cleanFilename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	url, err := h.objectclient.UploadFile(uploadCtx, h.cfg.BucketName, s3Key, file, contentType)
	if err != nil {
		http.Error(w, fmt.Sprintf("upload failed: %v", err), http.StatusInternalServerError)
		return
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		UploadedBy:  caller.UserID,
		FileName:    cleanFilename,
		StoragePath: url,
		SizeBytes:   header.Size,
		Status:      models.StatusPending,
	}

	// Same storage path means same logical document: reuse the row so
	// re-uploads replace rather than duplicate.
	existing, err := h.dbclient.GetDocumentByStoragePath(uploadCtx, workspaceID, url)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to look up document: %v", err), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		doc.ID = existing.ID
		if err := h.dbclient.UpdateDocumentStatus(uploadCtx, doc.ID, models.StatusPending, ""); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else if err := h.dbclient.CreateDocument(uploadCtx, doc); err != nil {
		log.Printf("DocumentHandler: DB insert failed for doc %s: %v", doc.ID, err)
		http.Error(w, fmt.Sprintf("failed to store document metadata: %v", err), http.StatusInternalServerError)
		return
	}

	h.ingestor.Enqueue(doc.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(doc)
}

// List returns the documents of one workspace, newest first.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")

	if err := h.gate.CanAccess(r.Context(), caller, workspaceID); err != nil {
		writeAuthErr(w, err)
		return
	}

	documents, err := h.dbclient.ListDocumentsByWorkspace(r.Context(), workspaceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if documents == nil {
		documents = []models.Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}

// Get returns one document row, status and error reason included.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")
	docID := chi.URLParam(r, "documentID")

	if err := h.gate.CanAccess(r.Context(), caller, workspaceID); err != nil {
		writeAuthErr(w, err)
		return
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil || doc.WorkspaceID != workspaceID {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// Chunks returns the stored chunk set of one document in index order.
func (h *DocumentHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")
	docID := chi.URLParam(r, "documentID")

	if err := h.gate.CanAccess(r.Context(), caller, workspaceID); err != nil {
		writeAuthErr(w, err)
		return
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil || doc.WorkspaceID != workspaceID {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	chunks, err := h.dbclient.GetChunksByDocument(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunks)
}

// Delete removes the document row (chunks and vectors cascade) and the
// stored object.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")
	docID := chi.URLParam(r, "documentID")

	if err := h.gate.CanAccess(r.Context(), caller, workspaceID); err != nil {
		writeAuthErr(w, err)
		return
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil || doc.WorkspaceID != workspaceID {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	if err := h.dbclient.DeleteDocument(r.Context(), docID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Best effort; the row is gone either way.
	if strings.HasPrefix(doc.StoragePath, "https://") {
		bucket, key := objectstore.ParseObjectURL(doc.StoragePath)
		if err := h.objectclient.DeleteFile(r.Context(), bucket, key); err != nil {
			log.Printf("DocumentHandler: could not delete object for doc %s: %v", docID, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
