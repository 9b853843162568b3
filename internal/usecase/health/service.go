package health

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
	Unhealthy Status = "error"
)

// CheckResult is one component outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service pings the search engine and, when configured, the record storage.
type Service struct {
	checks map[string]Pinger
}

// New creates a Service. storage can be nil when the process never reads records.
func New(engine, storage Pinger) *Service {
	checks := map[string]Pinger{"engine": engine}
	if storage != nil {
		checks["storage"] = storage
	}
	return &Service{checks: checks}
}

// Check pings every component.
func (s *Service) Check(ctx context.Context) Report {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	log := logger.FromContext(ctx)
	results := make(map[string]CheckResult, len(names))
	failed := 0
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			log.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			results[name] = CheckError
			failed++
			continue
		}
		results[name] = CheckOK
	}

	status := Healthy
	switch {
	case failed == len(names):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: results}
}
