package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/internal/infrastructure/monitor"
	"github.com/miniplanner/backend/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
}

func NewHealthHandler(mon *monitor.Monitor, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// Check reports the probe status of every backing store. Degraded stores
// still answer 200 so orchestrators don't restart a service that can limp
// along on its local slot; the payload carries the detail.
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	code := http.StatusOK
	if !status.Postgres && !status.Redis && !status.LocalStore {
		code = http.StatusServiceUnavailable
	}
	h.respondSuccess(ctx, code, status)
}
