package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/api/transport"
	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/pkg/httpcontext"
	authUC "github.com/miniplanner/backend/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc *authUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// authResponse is what every successful sign-in variant returns.
type authResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

func viewOf(user *domain.User) userView {
	return userView{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}
}

func (h *AuthHandler) SignUp(ctx *fasthttp.RequestCtx) {
	var req transport.SignUpRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	creds, err := h.uc.SignUp(stdCtx, req.Email, req.Password, req.Username)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, authResponse{User: viewOf(creds.User), Token: creds.Token})
}

func (h *AuthHandler) SignIn(ctx *fasthttp.RequestCtx) {
	var req transport.SignInRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	creds, err := h.uc.SignIn(stdCtx, req.Email, req.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, authResponse{User: viewOf(creds.User), Token: creds.Token})
}

func (h *AuthHandler) SignInWithProvider(ctx *fasthttp.RequestCtx) {
	var req transport.ProviderSignInRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	creds, err := h.uc.SignInWithProvider(stdCtx, req.Provider, req.Email, req.DisplayName)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, authResponse{User: viewOf(creds.User), Token: creds.Token})
}

func (h *AuthHandler) SignOut(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.SignOut(stdCtx, sessionID, userID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}
