package chi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
	"github.com/kailas-cloud/indexsync/internal/usecase/manage"
)

// Sync handles POST /v1/sync.
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	var body SyncRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	req, err := syncRequestFromBody(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	summary, err := s.manage.Sync(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse(summary))
}

func syncRequestFromBody(body SyncRequest) (manage.SyncRequest, error) {
	req := manage.NewSyncRequest()
	req.Types = body.Models
	req.Index = body.Index
	req.Refresh = body.Refresh

	switch indexing.Action(body.Action) {
	case "", indexing.ActionIndex:
	case indexing.ActionDelete:
		req.Action = indexing.ActionDelete
	default:
		return manage.SyncRequest{}, domain.Validationf("unknown action %q", body.Action)
	}
	if body.BulkSize != nil {
		if *body.BulkSize <= 0 {
			return manage.SyncRequest{}, domain.Validationf("bulk_size must be positive")
		}
		req.BatchSize = *body.BulkSize
	}
	if body.NumDocs != nil {
		req.MaxCount = *body.NumDocs
	}

	dr, err := indexing.ParseDateRange(body.StartDate, body.EndDate)
	if err != nil {
		return manage.SyncRequest{}, err
	}
	req.DateRange = dr
	return req, nil
}

// CreateIndices handles POST /v1/indices and /v1/indices/{index}.
func (s *Server) CreateIndices(w http.ResponseWriter, r *http.Request) {
	if err := s.manage.CreateIndices(r.Context(), chi.URLParam(r, "index")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteIndices handles DELETE /v1/indices and /v1/indices/{index}.
func (s *Server) DeleteIndices(w http.ResponseWriter, r *http.Request) {
	if err := s.manage.DeleteIndices(r.Context(), chi.URLParam(r, "index"), confirmed(r)); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateMappings handles PUT /v1/indices/{index}/mappings.
func (s *Server) UpdateMappings(w http.ResponseWriter, r *http.Request) {
	var body MappingsRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := s.manage.UpdateMappings(r.Context(), chi.URLParam(r, "index"), body.Models); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMappings handles DELETE /v1/indices/{index}/mappings.
func (s *Server) DeleteMappings(w http.ResponseWriter, r *http.Request) {
	var body MappingsRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	err := s.manage.DeleteMappings(r.Context(), chi.URLParam(r, "index"), body.Models, confirmed(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}
