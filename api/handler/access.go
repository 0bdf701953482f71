package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/api/transport"
	"github.com/lexdesk/officeauth/pkg/httpcontext"
	"github.com/lexdesk/officeauth/usecase/session"
)

// AccessHandler serves the resolved view of the caller.
type AccessHandler struct {
	baseHandler
	states StateResolver
}

func NewAccessHandler(states StateResolver, adapter *httpcontext.Adapter, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{
		baseHandler: newBaseHandler(adapter, logger),
		states:      states,
	}
}

// @Summary Resolved user, profile, office and permissions
// @Tags access
// @Router /api/v1/auth/me [get]
func (h *AccessHandler) Me(ctx *fasthttp.RequestCtx) {
	state, ok := h.resolve(ctx)
	if !ok {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.MeResponse{
		User:        state.User,
		Profile:     state.Profile,
		Office:      state.Office,
		OfficeUser:  state.Membership,
		Permissions: state.Permissions,
		FirstLogin:  state.FirstLogin,
		Degraded:    state.Degraded,
	})
}

// @Summary Feature permissions of the caller
// @Tags access
// @Router /api/v1/auth/permissions [get]
func (h *AccessHandler) Permissions(ctx *fasthttp.RequestCtx) {
	state, ok := h.resolve(ctx)
	if !ok {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state.Permissions)
}

// @Summary Trial and subscription status of the caller
// @Tags billing
// @Router /api/v1/billing/payment-status [get]
func (h *AccessHandler) PaymentStatus(ctx *fasthttp.RequestCtx) {
	state, ok := h.resolve(ctx)
	if !ok {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.PaymentStatusResponse{
		Result:           state.Payment,
		ShowPaymentModal: state.Payment.NeedsPayment,
	})
}

func (h *AccessHandler) resolve(ctx *fasthttp.RequestCtx) (session.State, bool) {
	sess, ok := h.session(ctx)
	if !ok {
		return session.State{}, false
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.states.Resolve(stdCtx, sess.Identity())
	if err != nil {
		h.log(stdCtx).Info("access resolution failed", zap.String("user_id", sess.UserID), zap.Error(err))
		h.respondError(ctx, err)
		return session.State{}, false
	}
	return state, true
}
