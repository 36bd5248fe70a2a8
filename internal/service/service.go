package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/audit"
	"github.com/gabrielekerete60/bms/internal/cache"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/logger"
	"github.com/gabrielekerete60/bms/internal/payment"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service runs the inventory, production and sales workflows. Every
// operation is one store transaction; audit and journal writes that are
// not part of the business invariant happen after commit.
type Service struct {
	store    store.Store
	audit    *audit.Recorder
	payments payment.Provider
	guard    cache.ReferenceGuard
	log      *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Service)

func WithPayments(provider payment.Provider, guard cache.ReferenceGuard) Option {
	return func(s *Service) {
		s.payments = provider
		if guard != nil {
			s.guard = guard
		}
	}
}

// WithLocation sets the business timezone used for daily sales keys.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.WithComponent("service")
		}
	}
}

func New(st store.Store, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store: st,
		audit: recorder,
		guard: cache.NewMemoryReferenceGuard(),
		log:   logger.Default().WithComponent("service"),
		loc:   time.UTC,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResultOf converts an operation error into the response envelope.
func ResultOf(err error) domain.ActionResult {
	if err == nil {
		return domain.ActionResult{Success: true}
	}
	return domain.ActionResult{
		Success: false,
		Error:   apperror.Message(err),
		Code:    apperror.Code(err),
	}
}

// run executes fn in a store transaction and classifies whatever escapes it.
func (s *Service) run(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	err := s.store.RunInTx(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrTransient), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperror.NewTransient(err)
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFound("The requested record was not found.").WithCause(err)
	}
	s.log.Errorw("workflow transaction failed", "error", err)
	return apperror.NewInternal(err)
}

// afterCommit performs a best-effort write outside the business transaction.
// Failures are logged and dropped.
func (s *Service) afterCommit(ctx context.Context, what string, fn func(ctx context.Context, tx store.Tx) error) {
	if err := s.store.RunInTx(ctx, fn); err != nil {
		s.log.Warnw("post-commit write failed", "write", what, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	if s.audit == nil {
		return
	}
	actor, _ := ActorFromContext(ctx)
	s.audit.Record(ctx, actor, action, entityType, entityID, detail)
}

func (s *Service) logProduction(ctx context.Context, actor domain.Actor, staffName string, action string, details string) {
	if actor.Role == domain.RoleDeveloper {
		staffName = domain.RoleManager
	}
	entry := domain.ProductionLog{
		ID:        xid.New("plog"),
		Action:    action,
		Details:   details,
		StaffID:   actor.StaffID,
		StaffName: staffName,
		Timestamp: s.now().UTC(),
	}
	s.afterCommit(ctx, "production_log", func(ctx context.Context, tx store.Tx) error {
		return tx.Journal().AddProductionLog(ctx, entry)
	})
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.StaffID == "" {
		return domain.Actor{}, apperror.NewUnauthorized("You must be signed in as a staff member.")
	}
	return actor, nil
}

func (s *Service) requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !slices.Contains(roles, actor.Role) {
		return domain.Actor{}, apperror.NewForbidden("You are not allowed to perform this action.")
	}
	return actor, nil
}

// managerRoles may operate on stock held by another staff member.
var managerRoles = []string{domain.RoleManager, domain.RoleDeveloper, domain.RoleSupervisor}

// operatingStaff resolves whose personal stock a request draws from. Only
// manager-class roles may name someone other than themselves.
func operatingStaff(actor domain.Actor, requested string) (string, error) {
	if requested == "" || requested == actor.StaffID {
		return actor.StaffID, nil
	}
	if !slices.Contains(managerRoles, actor.Role) {
		return "", apperror.NewForbidden("You can only sell from your own stock.")
	}
	return requested, nil
}

// dayKey is the sales/{yyyy-MM-dd} document id for t in the business timezone.
func (s *Service) dayKey(t time.Time) string {
	return t.In(s.loc).Format(domain.DaySalesKeyLayout)
}

func (s *Service) startOfDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// staffName resolves the display name of the acting staff member.
func staffName(ctx context.Context, tx store.Tx, actor domain.Actor) (string, error) {
	staff, err := tx.Directory().GetStaff(ctx, actor.StaffID)
	switch {
	case err == nil:
		return staff.Name, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	case actor.Name != "":
		return actor.Name, nil
	default:
		return actor.Username, nil
	}
}

func getStaff(ctx context.Context, tx store.Tx, id string, notFound string) (*domain.Staff, error) {
	staff, err := tx.Directory().GetStaff(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound(notFound)
	}
	return staff, err
}

func getRun(ctx context.Context, tx store.Tx, runID string) (*domain.Transfer, error) {
	run, err := tx.Transfers().GetTransfer(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Sales run not found.")
	}
	return run, err
}

func getCustomer(ctx context.Context, tx store.Tx, id string) (*domain.Customer, error) {
	customer, err := tx.Sales().GetCustomer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Customer not found.")
	}
	return customer, err
}

func transitionError(err error, message string) error {
	var te *domain.TransitionError
	if errors.As(err, &te) {
		return apperror.NewInvalidState(message).WithCause(err)
	}
	return err
}

func itemsDetail(items []domain.TransferItem) string {
	detail := ""
	for i, item := range items {
		if i > 0 {
			detail += ","
		}
		detail += fmt.Sprintf("%s:%d", item.ProductID, item.Quantity)
	}
	return detail
}
