package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/pkg/httpcontext"
	plannerUC "github.com/miniplanner/backend/usecase/planner"
)

type DashboardHandler struct {
	baseHandler
	hub *plannerUC.Hub
}

func NewDashboardHandler(hub *plannerUC.Hub, adapter *httpcontext.Adapter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		hub:         hub,
	}
}

type dueSoonItem struct {
	domain.Task
	Due domain.DueInfo `json:"due"`
}

type dashboardView struct {
	Stats   plannerUC.Stats `json:"stats"`
	DueSoon []dueSoonItem   `json:"dueSoon"`
}

// Get returns the dashboard counters and the nearest upcoming tasks with
// their due badges.
func (h *DashboardHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	p := h.hub.Attach(userID)

	limit := 8
	if raw := string(ctx.QueryArgs().Peek("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	view := dashboardView{
		Stats:   p.Stats(),
		DueSoon: []dueSoonItem{},
	}
	for _, task := range p.DueSoon(limit) {
		due, err := domain.DueStatus(task.DueDate)
		if err != nil {
			continue
		}
		view.DueSoon = append(view.DueSoon, dueSoonItem{Task: task, Due: due})
	}

	h.respondSuccess(ctx, http.StatusOK, view)
}
