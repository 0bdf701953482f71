package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	appLogger "github.com/lexdesk/officeauth/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
	KeyUserID     Key = "user_id"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	maxRequestID    = 128
)

// Adapter converts fasthttp.RequestCtx into a stdlib context carrying the
// request deadline, request id and the authenticated user id.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

func (a *Adapter) Timeout() time.Duration {
	return a.timeout
}

// Attach creates a context bounded by the adapter timeout. The request id is
// echoed back on the response.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := requestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set(headerRequestID, reqID)

	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}
	// Set by the bearer middleware after the token was verified.
	if uid := string(ctx.Request.Header.Peek(headerUserID)); uid != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserID, uid)
	}

	return stdCtx, cancel
}

// UserID returns the authenticated user id attached by Attach.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(KeyUserID).(string)
	return id
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return appLogger.NewRequestID()
	}
	header := strings.TrimSpace(string(ctx.Request.Header.Peek(headerRequestID)))
	if header == "" || len(header) > maxRequestID {
		return appLogger.NewRequestID()
	}
	return header
}
