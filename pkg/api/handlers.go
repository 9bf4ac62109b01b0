package api

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		s.sendStoreError(w, "Failed to collect stats", err)
		return
	}
	s.metrics.UpdateStoreStats(st.Blobs, st.Bytes)
	sendSuccess(w, StatsResponse{Blobs: st.Blobs, Bytes: st.Bytes}, http.StatusOK)
}

// handleInspect parses the header of the request body without storing it
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	h, err := codec.InspectHeader(body, s.config.CodecOptions...)
	if err != nil {
		sendError(w, "Invalid blob: "+err.Error(), http.StatusBadRequest)
		return
	}
	sendSuccess(w, h.Summary(), http.StatusOK)
}

func (s *Server) handleListBlobs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		s.sendStoreError(w, "Failed to list blobs", err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	sendSuccess(w, map[string]interface{}{"ids": out, "count": len(out)}, http.StatusOK)
}

func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	id, err := s.store.Put(body)
	if err != nil {
		s.sendStoreError(w, "Failed to store blob", err)
		return
	}
	h, err := codec.InspectHeader(body, s.config.CodecOptions...)
	if err != nil {
		s.sendStoreError(w, "Failed to parse stored blob", err)
		return
	}
	w.Header().Set("Location", "/api/v1/blobs/"+id.String())
	sendSuccess(w, BlobResponse{ID: id.String(), Size: len(body), Header: h.Summary()}, http.StatusCreated)
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blobID(w, r)
	if !ok {
		return
	}
	blob, err := s.store.Get(id)
	if err != nil {
		s.sendStoreError(w, "Failed to get blob", err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleGetHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blobID(w, r)
	if !ok {
		return
	}
	h, err := s.store.Header(id)
	if err != nil {
		s.sendStoreError(w, "Failed to read header", err)
		return
	}
	sendSuccess(w, h.Summary(), http.StatusOK)
}

func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blobID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(id); err != nil {
		s.sendStoreError(w, "Failed to delete blob", err)
		return
	}
	sendSuccess(w, map[string]string{"id": id.String(), "status": "deleted"}, http.StatusOK)
}

func (s *Server) blobID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := storage.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBlobSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) == 0 {
		sendError(w, "Request body is empty", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// sendStoreError maps store and codec errors onto HTTP statuses
func (s *Server) sendStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case stderrors.Is(err, storage.ErrBlobNotFound):
		sendError(w, "Blob not found", http.StatusNotFound)
	case stderrors.Is(err, storage.ErrInvalidID):
		sendError(w, err.Error(), http.StatusBadRequest)
	default:
		if _, ok := errors.KindOf(err); ok {
			sendError(w, message+": "+err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error(message, zap.Error(err))
		sendError(w, message, http.StatusInternalServerError)
	}
}
