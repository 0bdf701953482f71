package profile

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/repository"
)

// SystemAdminPolicy decides whether an e-mail is granted global administration.
type SystemAdminPolicy interface {
	IsSystemAdmin(ctx context.Context, email string) bool
}

// StaticPolicy is an allow-list fixed at startup.
type StaticPolicy map[string]struct{}

func NewStaticPolicy(emails ...string) StaticPolicy {
	p := make(StaticPolicy, len(emails))
	for _, email := range emails {
		if key := normalize(email); key != "" {
			p[key] = struct{}{}
		}
	}
	return p
}

func (p StaticPolicy) IsSystemAdmin(_ context.Context, email string) bool {
	_, ok := p[normalize(email)]
	return ok
}

// StorePolicy consults the configured list first and the system_admins table second.
// A failed table lookup counts as "not listed".
type StorePolicy struct {
	static  StaticPolicy
	admins  repository.SystemAdminRepository
	timeout time.Duration
	logger  *zap.Logger
}

func NewStorePolicy(static StaticPolicy, admins repository.SystemAdminRepository, timeout time.Duration, logger *zap.Logger) *StorePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StorePolicy{static: static, admins: admins, timeout: timeout, logger: logger}
}

func (p *StorePolicy) IsSystemAdmin(ctx context.Context, email string) bool {
	if normalize(email) == "" {
		return false
	}
	if p.static.IsSystemAdmin(ctx, email) {
		return true
	}
	if p.admins == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ok, err := p.admins.IsSystemAdmin(ctx, normalize(email))
	if err != nil {
		p.logger.Warn("system admin lookup failed", zap.Error(err))
		return false
	}
	return ok
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
