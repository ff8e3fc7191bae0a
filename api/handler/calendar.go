package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/api/transport"
	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/pkg/httpcontext"
	plannerUC "github.com/miniplanner/backend/usecase/planner"
)

type CalendarHandler struct {
	baseHandler
	hub *plannerUC.Hub
}

func NewCalendarHandler(hub *plannerUC.Hub, adapter *httpcontext.Adapter, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		baseHandler: newBaseHandler(adapter, logger),
		hub:         hub,
	}
}

type calendarView struct {
	Year    int                         `json:"year"`
	Month   int                         `json:"month"`
	Buckets map[string][]domain.Task    `json:"buckets"`
	Badges  map[string][]domain.DueInfo `json:"badges"`
}

// Get buckets the month's tasks by due date for the calendar grid. Defaults
// to the current month.
func (h *CalendarHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if raw := string(ctx.QueryArgs().Peek("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid year", nil))
			return
		}
		year = parsed
	}
	if raw := string(ctx.QueryArgs().Peek("month")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid month", nil))
			return
		}
		month = parsed
	}

	buckets := h.hub.Attach(userID).Month(year, time.Month(month))

	badges := make(map[string][]domain.DueInfo, len(buckets))
	for date, tasks := range buckets {
		infos := make([]domain.DueInfo, 0, len(tasks))
		for _, t := range tasks {
			if due, err := domain.DueStatus(t.DueDate); err == nil {
				infos = append(infos, due)
			}
		}
		badges[date] = infos
	}

	h.respondSuccess(ctx, http.StatusOK, calendarView{
		Year:    year,
		Month:   month,
		Buckets: buckets,
		Badges:  badges,
	})
}
