package documents

import (
	"context"
	"time"
)

// Health checks the document service health. A failing cache degrades the
// service but does not make it unhealthy.
func (s *Service) Health(ctx context.Context) *HealthOutput {
	dbOk := s.store != nil && s.store.Ping(ctx) == nil

	cacheOk := true
	if p, ok := s.cache.(Pinger); ok {
		cacheOk = p.Ping(ctx) == nil
	}

	status := "healthy"
	switch {
	case !dbOk:
		status = "unhealthy"
	case !cacheOk:
		status = "degraded"
	}

	return &HealthOutput{
		Status: status,
		Checks: HealthChecks{
			Database: dbOk,
			Cache:    cacheOk,
		},
		Types:     s.lib.Catalog().Len(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
