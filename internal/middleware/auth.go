package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
)

const sessionKey = "auth.session"

// Authenticator validates a bearer access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Session, error)
}

// BearerAuth rejects requests without a valid access token and stores the session on the request.
func BearerAuth(auth Authenticator, timeout time.Duration, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := extractToken(ctx)
			if token == "" {
				unauthorized(ctx)
				return
			}

			stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
			session, err := auth.Authenticate(stdCtx, token)
			cancel()
			if err != nil {
				if !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					logger.Warn("token verification failed", zap.Error(err))
				}
				unauthorized(ctx)
				return
			}

			ctx.SetUserValue(sessionKey, session)
			ctx.Request.Header.Set("X-User-ID", session.UserID)
			next(ctx)
		}
	}
}

// SessionFrom returns the session stored by BearerAuth.
func SessionFrom(ctx *fasthttp.RequestCtx) *domain.Session {
	session, _ := ctx.UserValue(sessionKey).(*domain.Session)
	return session
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.Header.Set("WWW-Authenticate", `Bearer realm="officeauth"`)
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString(`{"status":"error","code":"UNAUTHORIZED","error":"unauthorized"}`)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
