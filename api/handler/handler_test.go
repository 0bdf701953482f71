package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/lexdesk/officeauth/api/transport"
	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/internal/infrastructure/monitor"
	"github.com/lexdesk/officeauth/internal/middleware"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/permission"
	"github.com/lexdesk/officeauth/usecase/session"
)

type stubDirectory struct {
	session  *domain.Session
	err      error
	signOuts []string
}

func (d *stubDirectory) SignUp(context.Context, directory.SignUpInput) (*domain.Session, error) {
	return d.session, d.err
}

func (d *stubDirectory) SignIn(context.Context, string, string) (*domain.Session, error) {
	return d.session, d.err
}

func (d *stubDirectory) Refresh(context.Context, string) (*domain.Session, error) {
	return d.session, d.err
}

func (d *stubDirectory) SignOut(_ context.Context, id string) error {
	d.signOuts = append(d.signOuts, id)
	return nil
}

func (d *stubDirectory) Authenticate(_ context.Context, token string) (*domain.Session, error) {
	if d.session != nil && token == d.session.AccessToken {
		return d.session, nil
	}
	return nil, domain.ErrUnauthorized
}

type stubStates struct {
	state session.State
	err   error
}

func (s stubStates) Resolve(context.Context, *domain.Identity) (session.State, error) {
	return s.state, s.err
}

type loginCounter map[string]int

func (c loginCounter) ObserveLogin(outcome string) { c[outcome]++ }

var testSession = &domain.Session{ID: "s1", UserID: "u1", Email: "ana@firm.test", AccessToken: "access", RefreshToken: "refresh"}

func post(handler fasthttp.RequestHandler, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetBodyString(body)
	handler(&ctx)
	return &ctx
}

func get(handler fasthttp.RequestHandler, token string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	handler(&ctx)
	return &ctx
}

func envelope(t *testing.T, ctx *fasthttp.RequestCtx, data interface{}) transport.Envelope {
	t.Helper()
	var env transport.Envelope
	if data != nil {
		env.Data = data
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	return env
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		dir := &stubDirectory{session: testSession}
		logins := loginCounter{}
		h := NewAuthHandler(dir, stubStates{}, logins, nil, nil)

		ctx := post(h.Login, `{"email":"ana@firm.test","password":"pw"}`)
		require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

		var resp transport.SessionResponse
		env := envelope(t, ctx, &resp)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, "access", resp.AccessToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, 1, logins[session.LoginSucceeded])
	})

	t.Run("bad credentials", func(t *testing.T) {
		logins := loginCounter{}
		h := NewAuthHandler(&stubDirectory{err: domain.ErrInvalidCredentials}, stubStates{}, logins, nil, nil)
		ctx := post(h.Login, `{"email":"ana@firm.test","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
		assert.Equal(t, string(domain.ErrCodeInvalidCredentials), envelope(t, ctx, nil).Code)
		assert.Equal(t, 1, logins[session.LoginRejected])
	})

	t.Run("no profile", func(t *testing.T) {
		dir := &stubDirectory{session: testSession}
		h := NewAuthHandler(dir, stubStates{err: domain.ErrProfileUnavailable}, nil, nil, nil)
		ctx := post(h.Login, `{"email":"ana@firm.test","password":"pw"}`)
		assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())
		assert.Equal(t, []string{"s1"}, dir.signOuts)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewAuthHandler(&stubDirectory{}, stubStates{}, nil, nil, nil)
		assert.Equal(t, http.StatusBadRequest, post(h.Login, `{`).Response.StatusCode())
		assert.Equal(t, http.StatusBadRequest, post(h.Login, `{"email":""}`).Response.StatusCode())
	})
}

func TestRegisterConflict(t *testing.T) {
	h := NewAuthHandler(&stubDirectory{err: domain.ErrEmailTaken}, stubStates{}, nil, nil, nil)
	ctx := post(h.Register, `{"email":"ana@firm.test","password":"pw123456"}`)
	assert.Equal(t, http.StatusConflict, ctx.Response.StatusCode())
}

func TestRefreshAndLogout(t *testing.T) {
	dir := &stubDirectory{session: testSession}
	h := NewAuthHandler(dir, stubStates{}, nil, nil, nil)

	assert.Equal(t, http.StatusOK, post(h.Refresh, `{"refresh_token":"refresh"}`).Response.StatusCode())
	assert.Equal(t, http.StatusBadRequest, post(h.Refresh, `{}`).Response.StatusCode())

	logout := middleware.BearerAuth(dir, 0, nil)(h.Logout)
	assert.Equal(t, http.StatusNoContent, get(logout, "access").Response.StatusCode())
	assert.Equal(t, []string{"s1"}, dir.signOuts)
	assert.Equal(t, http.StatusUnauthorized, get(logout, "").Response.StatusCode())
}

func TestAccessEndpoints(t *testing.T) {
	perms, _ := permission.For(permission.VariantOfficeAdmin)
	officeID := "o1"
	role := domain.RoleAdmin
	state := session.State{
		User:        &domain.SessionUser{ID: "u1", Name: "Ana", Email: "ana@firm.test", Role: domain.RoleUser, OfficeID: &officeID, OfficeRole: &role},
		Profile:     &domain.Profile{UserID: "u1", Role: domain.RoleUser},
		Office:      &domain.Office{ID: "o1", Name: "Lima Advocacia"},
		Permissions: perms,
		Payment:     domain.PaymentValidationResult{NeedsPayment: true, DaysRegistered: 9, PaymentStatus: domain.PaymentOverdue},
	}
	dir := &stubDirectory{session: testSession}
	auth := middleware.BearerAuth(dir, 0, nil)
	h := NewAccessHandler(stubStates{state: state}, nil, nil)

	var me transport.MeResponse
	ctx := get(auth(h.Me), "access")
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	envelope(t, ctx, &me)
	assert.Equal(t, "Lima Advocacia", me.Office.Name)
	assert.True(t, me.Permissions.CanManageOfficeUsers)

	var raw map[string]interface{}
	ctx = get(auth(h.Permissions), "access")
	envelope(t, ctx, &raw)
	assert.Equal(t, true, raw["canViewClients"])
	assert.Equal(t, false, raw["canDeleteProcesses"])

	var pay transport.PaymentStatusResponse
	ctx = get(auth(h.PaymentStatus), "access")
	envelope(t, ctx, &pay)
	assert.True(t, pay.ShowPaymentModal)
	assert.Equal(t, domain.PaymentOverdue, pay.Result.PaymentStatus)

	assert.Equal(t, http.StatusUnauthorized, get(auth(h.Me), "wrong").Response.StatusCode())

	failing := NewAccessHandler(stubStates{err: domain.ErrProfileUnavailable}, nil, nil)
	assert.Equal(t, http.StatusForbidden, get(auth(failing.Me), "access").Response.StatusCode())
}

type fixedStatus monitor.Status

func (s fixedStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealth(t *testing.T) {
	ok := NewHealthHandler(fixedStatus{PostgreSQL: true, Redis: true, Buffer: true}, nil, nil)
	assert.Equal(t, http.StatusOK, get(ok.Check, "").Response.StatusCode())

	degraded := NewHealthHandler(fixedStatus{PostgreSQL: true}, nil, nil)
	ctx := get(degraded.Check, "")
	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Equal(t, "DEGRADED", envelope(t, ctx, nil).Code)
}

func TestMapError(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidCredentials: http.StatusUnauthorized,
		domain.ErrUnauthorized:       http.StatusUnauthorized,
		domain.ErrProfileUnavailable: http.StatusForbidden,
		domain.ErrLoginInProgress:    http.StatusConflict,
		domain.ErrEmailTaken:         http.StatusConflict,
		domain.ErrInvalidPayload:     http.StatusBadRequest,
		domain.ErrProfileNotFound:    http.StatusNotFound,
		errors.New("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		status, _ := mapError(err)
		assert.Equal(t, want, status, err.Error())
	}
}
