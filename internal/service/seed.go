package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"teaching-workload/internal/model"
)

type controllerSeedStore interface {
	FindFirstByRole(ctx context.Context, role model.Role) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}

// ControllerSeeder makes sure the store holds at least one CONTROLLER.
// It only ever creates; an existing controller is never touched.
type ControllerSeeder struct {
	users    controllerSeedStore
	hasher   PasswordHasher
	audit    auditRecorder
	username string
	password string
}

func NewControllerSeeder(users controllerSeedStore, hasher PasswordHasher, audit auditRecorder, username string, password string) *ControllerSeeder {
	if audit == nil {
		audit = noopAudit{}
	}
	return &ControllerSeeder{
		users:    users,
		hasher:   hasher,
		audit:    audit,
		username: strings.TrimSpace(username),
		password: password,
	}
}

// Run reports whether it created the initial controller. Two processes
// starting against an empty store may both reach Create; the loser hits the
// unique username constraint and treats the store as seeded.
func (s *ControllerSeeder) Run(ctx context.Context) (bool, error) {
	existing, err := s.users.FindFirstByRole(ctx, model.RoleController)
	if err == nil {
		slog.Info("controller account present; skipping seed", "user_id", existing.ID)
		return false, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return false, fmt.Errorf("look up controller: %w", err)
	}

	if s.username == "" || s.password == "" {
		return false, errors.New("initial controller credentials are not configured")
	}

	hash, err := s.hasher.Hash(s.password)
	if err != nil {
		return false, fmt.Errorf("hash initial controller password: %w", err)
	}

	created, err := s.users.Create(ctx, model.User{
		Username:            s.username,
		PasswordHash:        hash,
		Role:                model.RoleController,
		IsPasswordTemporary: true,
		FirstName:           "Initial",
		LastName:            "Controller",
	})
	if errors.Is(err, model.ErrUserAlreadyExists) {
		slog.Warn("initial controller username already taken; not seeding", "username", s.username)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create initial controller: %w", err)
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:   model.AuditControllerSeed,
		Actor:    model.AuditActor{Username: "system"},
		Status:   model.AuditStatusSuccess,
		Resource: userResource(created.ID),
	})

	slog.Info("created initial controller", "username", created.Username, "user_id", created.ID)
	return true, nil
}
