package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/db"
	"github.com/kailas-cloud/indexsync/internal/domain"
	healthuc "github.com/kailas-cloud/indexsync/internal/usecase/health"
	"github.com/kailas-cloud/indexsync/internal/usecase/indexing"
	"github.com/kailas-cloud/indexsync/internal/usecase/manage"
	searchuc "github.com/kailas-cloud/indexsync/internal/usecase/search"
)

// Manager runs the index management operations.
type Manager interface {
	Sync(ctx context.Context, req manage.SyncRequest) (indexing.Summary, error)
	CreateIndices(ctx context.Context, index string) error
	DeleteIndices(ctx context.Context, index string, confirmed bool) error
	UpdateMappings(ctx context.Context, index string, types []string) error
	DeleteMappings(ctx context.Context, index string, types []string, confirmed bool) error
}

// Searcher runs searches.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Response, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the admin API.
type Server struct {
	manage        Manager
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an admin API server.
func NewServer(manage Manager, search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		manage: manage,
		search: search,
		health: health,
		logger: logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed, true),
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound, true),
			sentinelHandler(db.ErrIndexExists, http.StatusConflict, CodeAlreadyExists, true),
			sentinelHandler(domain.ErrRemoteWrite, http.StatusBadGateway, CodeRemoteWrite, false),
		},
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sync", s.Sync)
		r.Post("/search", s.Search)

		r.Post("/indices", s.CreateIndices)
		r.Delete("/indices", s.DeleteIndices)
		r.Route("/indices/{index}", func(r chi.Router) {
			r.Post("/", s.CreateIndices)
			r.Delete("/", s.DeleteIndices)
			r.Put("/mappings", s.UpdateMappings)
			r.Delete("/mappings", s.DeleteMappings)
		})
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

// sentinelHandler matches one sentinel error. Detailed messages are exposed
// only for errors that describe the request, never the backend.
func sentinelHandler(sentinel error, status int, code ErrorCode, detailed bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detailed {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
