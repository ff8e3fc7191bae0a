package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/api/transport"
	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/pkg/httpcontext"
	settingsUC "github.com/miniplanner/backend/usecase/settings"
)

type SettingsHandler struct {
	baseHandler
	uc *settingsUC.UseCase
}

func NewSettingsHandler(uc *settingsUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

func (h *SettingsHandler) Get(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.uc.Get())
}

func (h *SettingsHandler) Update(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}

	var req transport.SettingsRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	updated, err := h.uc.Update(domain.Settings{
		NotificationsEnabled: req.NotificationsEnabled,
		ReminderTime:         req.ReminderTime,
		RemindDaysAhead:      req.RemindDaysAhead,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}
