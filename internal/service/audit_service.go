package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"teaching-workload/internal/model"
	"teaching-workload/pkg/apierror"
)

type auditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

type AuditService struct {
	store auditStore
}

func NewAuditService(store auditStore) *AuditService {
	return &AuditService{store: store}
}

// Record writes an entry best-effort: a failing write is logged and the
// calling operation carries on.
func (s *AuditService) Record(ctx context.Context, entry model.AuditEntry) {
	if s == nil || s.store == nil {
		return
	}

	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	// Detach from request cancellation so a client hang-up does not drop the entry.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.Log(writeCtx, entry); err != nil {
		slog.Error("audit write failed", "action", entry.Action, "status", entry.Status, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) (model.AuditList, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}
	// Keeps (Page-1)*Limit inside a valid OFFSET.
	if maxPage := math.MaxInt32 / query.Limit; query.Page > maxPage {
		query.Page = maxPage
	}

	items, total, err := s.store.Query(ctx, query)
	if err != nil {
		return model.AuditList{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}

	return model.AuditList{
		Items: items,
		Meta:  model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages},
	}, nil
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, model.AuditEntry) {}

type clientIPKey struct{}

// WithClientIP tags ctx with the caller's address for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func actorFor(ctx context.Context, identity model.Identity) model.AuditActor {
	return model.AuditActor{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
		IP:       ClientIPFromContext(ctx),
	}
}

// auditErrorCode reduces err to a stable code so store and driver text
// never reaches audit rows.
func auditErrorCode(err error) string {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, model.ErrUserAlreadyExists):
		return apierror.CodeAlreadyExists
	case errors.Is(err, model.ErrUserNotFound):
		return apierror.CodeNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return apierror.CodeBadRequest
	default:
		return apierror.CodeInternal
	}
}

func userResource(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}
