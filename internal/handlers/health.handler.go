package handlers

import (
	"context"

	"github.com/fasthttp/router"

	xhttp "github.com/nimasrn/church-messaging/pkg/http"
)

type HealthService interface {
	Check(ctx context.Context) (map[string]string, bool)
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	checks, ok := h.svc.Check(ctx)
	status := xhttp.StatusOK
	if !ok {
		status = xhttp.StatusServiceUnavailable
	}
	writeJSON(ctx, status, map[string]any{"success": ok, "checks": checks})
}
