package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/api/transport"
	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/pkg/httpcontext"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/session"
)

// Directory is the slice of the identity provider the auth endpoints need.
type Directory interface {
	SignUp(ctx context.Context, in directory.SignUpInput) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

// StateResolver derives the full access state of an identity.
type StateResolver interface {
	Resolve(ctx context.Context, identity *domain.Identity) (session.State, error)
}

// LoginObserver is told about every credential exchange outcome.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

type AuthHandler struct {
	baseHandler
	dir      Directory
	states   StateResolver
	observer LoginObserver
}

func NewAuthHandler(dir Directory, states StateResolver, observer LoginObserver, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dir:         dir,
		states:      states,
		observer:    observer,
	}
}

// @Summary Create an account and sign in
// @Tags auth
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(ctx *fasthttp.RequestCtx) {
	var req transport.RegisterRequest
	if !h.decode(ctx, &req) {
		return
	}
	if !req.Valid() {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sess, err := h.dir.SignUp(stdCtx, directory.SignUpInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.finishSignIn(stdCtx, ctx, sess, http.StatusCreated)
}

// @Summary Exchange credentials for a session
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !h.decode(ctx, &req) {
		return
	}
	if !req.Valid() {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sess, err := h.dir.SignIn(stdCtx, req.Email, req.Password)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeInvalidCredentials) {
			h.observe(session.LoginRejected)
		} else {
			h.observe(session.LoginFailed)
		}
		h.respondError(ctx, err)
		return
	}
	h.finishSignIn(stdCtx, ctx, sess, http.StatusOK)
}

// finishSignIn makes sure the identity has a profile before handing out tokens.
func (h *AuthHandler) finishSignIn(stdCtx context.Context, ctx *fasthttp.RequestCtx, sess *domain.Session, status int) {
	if _, err := h.states.Resolve(stdCtx, sess.Identity()); err != nil {
		h.observe(session.LoginNoProfile)
		if signOutErr := h.dir.SignOut(stdCtx, sess.ID); signOutErr != nil {
			h.log(stdCtx).Warn("sign-out after failed resolution", zap.Error(signOutErr))
		}
		h.respondError(ctx, err)
		return
	}
	h.observe(session.LoginSucceeded)
	h.respondSuccess(ctx, status, transport.NewSessionResponse(sess))
}

// @Summary Rotate the token pair
// @Tags auth
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	var req transport.RefreshRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.RefreshToken == "" {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sess, err := h.dir.Refresh(stdCtx, req.RefreshToken)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewSessionResponse(sess))
}

// @Summary End the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	sess, ok := h.session(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.dir.SignOut(stdCtx, sess.ID); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

func (h *AuthHandler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveLogin(outcome)
	}
}
