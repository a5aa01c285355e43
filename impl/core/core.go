package core

import (
	"context"
	"fmt"
	"log/slog"

	"giftbot/entity"
	"giftbot/internal/admin"
	"giftbot/internal/listener"
	"giftbot/lib/sl"
)

type AuthService interface {
	OperatorByToken(token string) (*entity.Operator, error)
}

type AdminService interface {
	Create(ctx context.Context, draft *entity.GiftCodeDraft) (*entity.GiftCode, error)
	Remove(ctx context.Context, key string) error
	RemoveStale(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]admin.CodeSummary, error)
	Audit(ctx context.Context, key string) (*admin.AuditReport, error)
	Reload(ctx context.Context) (int, error)
}

type ListenerGroup interface {
	Statuses() []listener.Status
	Healthy() bool
}

// Core is the facade the HTTP handlers call into.
type Core struct {
	auth      AuthService
	admin     AdminService
	listeners ListenerGroup
	log       *slog.Logger
}

func New(admin AdminService, log *slog.Logger) *Core {
	if admin == nil {
		panic("admin service is nil")
	}
	return &Core{
		admin: admin,
		log:   log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetListeners(group ListenerGroup) {
	c.listeners = group
}

func (c *Core) AuthenticateByToken(token string) (*entity.Operator, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.OperatorByToken(token)
}

func (c *Core) ListCodes(ctx context.Context) ([]admin.CodeSummary, error) {
	return c.admin.List(ctx)
}

func (c *Core) CreateCode(ctx context.Context, draft *entity.GiftCodeDraft) (*entity.GiftCode, error) {
	return c.admin.Create(ctx, draft)
}

func (c *Core) RemoveCode(ctx context.Context, key string) error {
	return c.admin.Remove(ctx, key)
}

func (c *Core) PurgeCodes(ctx context.Context) ([]string, error) {
	return c.admin.RemoveStale(ctx)
}

func (c *Core) AuditCode(ctx context.Context, key string) (*admin.AuditReport, error) {
	return c.admin.Audit(ctx, key)
}

func (c *Core) ReloadCodes(ctx context.Context) (int, error) {
	return c.admin.Reload(ctx)
}

func (c *Core) ListenerStatuses() []listener.Status {
	if c.listeners == nil {
		return nil
	}
	return c.listeners.Statuses()
}

// ListenersHealthy is false until listeners are attached.
func (c *Core) ListenersHealthy() bool {
	if c.listeners == nil {
		return false
	}
	return c.listeners.Healthy()
}
