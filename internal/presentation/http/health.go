package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
)

type healthResponse struct {
	Status int
	Body   struct {
		Status string `json:"status"`
		Store  string `json:"store"`
	}
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
		op.Tags = []string{"ops"}
	})
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Store = "ok"

	if err := s.pages.Health(ctx); err != nil {
		s.recordError(ctx, err, "health check failed", nil)
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = "degraded"
		resp.Body.Store = "unavailable"
	}

	return resp, nil
}
