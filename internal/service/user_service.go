package service

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"teaching-workload/internal/model"
	"teaching-workload/pkg/apierror"
)

const MinPasswordLength = 8

type userStore interface {
	userLookup
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	CountByRole(ctx context.Context, role model.Role) (int, error)
}

type UserService struct {
	users  userStore
	hasher PasswordHasher
	audit  auditRecorder
}

func NewUserService(users userStore, hasher PasswordHasher, audit auditRecorder) *UserService {
	if audit == nil {
		audit = noopAudit{}
	}
	return &UserService{users: users, hasher: hasher, audit: audit}
}

func (s *UserService) List(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (model.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}
	return user.Public(), nil
}

// Create adds an account. Unless the request says otherwise the password is
// temporary, so the new user must pick their own on first login.
func (s *UserService) Create(ctx context.Context, actor model.Identity, req model.CreateUserRequest) (model.UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return model.UserResponse{}, apierror.New(apierror.CodeBadRequest, "username is required", "username", http.StatusBadRequest)
	}
	if err := validatePassword(req.Password); err != nil {
		return model.UserResponse{}, err
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return model.UserResponse{}, apierror.New(apierror.CodeBadRequest, "invalid role", req.Role, http.StatusBadRequest)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.UserResponse{}, err
	}

	temporary := true
	if req.IsPasswordTemporary != nil {
		temporary = *req.IsPasswordTemporary
	}

	created, err := s.users.Create(ctx, model.User{
		Username:            username,
		PasswordHash:        hash,
		Role:                role,
		IsPasswordTemporary: temporary,
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
	})
	if err != nil {
		s.audit.Record(ctx, model.AuditEntry{
			Action:   model.AuditUserCreated,
			Actor:    actorFor(ctx, actor),
			Status:   model.AuditStatusFailure,
			Resource: "user:" + username,
			Detail:   auditErrorCode(err),
		})
		return model.UserResponse{}, err
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:   model.AuditUserCreated,
		Actor:    actorFor(ctx, actor),
		Status:   model.AuditStatusSuccess,
		Resource: userResource(created.ID),
		Detail:   "role=" + string(created.Role),
	})

	return created.Public(), nil
}

// Update applies the non-nil fields of req. A password set by an
// administrator is temporary unless the request clears the flag explicitly.
func (s *UserService) Update(ctx context.Context, actor model.Identity, id int64, req model.UpdateUserRequest) (model.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}

	changed := make([]string, 0, 6)

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			return model.UserResponse{}, apierror.New(apierror.CodeBadRequest, "username must not be empty", "username", http.StatusBadRequest)
		}
		user.Username = username
		changed = append(changed, "username")
	}

	if req.Role != nil {
		role, ok := model.ParseRole(*req.Role)
		if !ok {
			return model.UserResponse{}, apierror.New(apierror.CodeBadRequest, "invalid role", *req.Role, http.StatusBadRequest)
		}
		if user.Role == model.RoleController && role != model.RoleController {
			if err := s.ensureAnotherController(ctx); err != nil {
				s.auditUpdateFailure(ctx, actor, id, err)
				return model.UserResponse{}, err
			}
		}
		user.Role = role
		changed = append(changed, "role")
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
		changed = append(changed, "firstName")
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
		changed = append(changed, "lastName")
	}

	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return model.UserResponse{}, err
		}
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return model.UserResponse{}, err
		}
		user.PasswordHash = hash
		user.IsPasswordTemporary = true
		changed = append(changed, "password")
	}

	if req.IsPasswordTemporary != nil {
		user.IsPasswordTemporary = *req.IsPasswordTemporary
		changed = append(changed, "isPasswordTemporary")
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		s.auditUpdateFailure(ctx, actor, id, err)
		return model.UserResponse{}, err
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:   model.AuditUserUpdated,
		Actor:    actorFor(ctx, actor),
		Status:   model.AuditStatusSuccess,
		Resource: userResource(updated.ID),
		Detail:   strings.Join(changed, ","),
	})

	return updated.Public(), nil
}

// ensureAnotherController refuses a demotion that would leave no account
// able to reach the controller routes.
func (s *UserService) ensureAnotherController(ctx context.Context) error {
	n, err := s.users.CountByRole(ctx, model.RoleController)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apierror.New(apierror.CodeLastController, "cannot demote the last controller", "", http.StatusConflict)
	}
	return nil
}

func (s *UserService) auditUpdateFailure(ctx context.Context, actor model.Identity, id int64, err error) {
	s.audit.Record(ctx, model.AuditEntry{
		Action:   model.AuditUserUpdated,
		Actor:    actorFor(ctx, actor),
		Status:   model.AuditStatusFailure,
		Resource: userResource(id),
		Detail:   auditErrorCode(err),
	})
}

// ChangePassword replaces the caller's own password and clears the
// temporary flag.
func (s *UserService) ChangePassword(ctx context.Context, identity model.Identity, password string) (model.ChangePasswordResponse, error) {
	if err := validatePassword(password); err != nil {
		return model.ChangePasswordResponse{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.ChangePasswordResponse{}, err
	}

	if err := s.users.UpdatePassword(ctx, identity.UserID, hash); err != nil {
		return model.ChangePasswordResponse{}, err
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:   model.AuditPasswordChanged,
		Actor:    actorFor(ctx, identity),
		Status:   model.AuditStatusSuccess,
		Resource: userResource(identity.UserID),
	})

	return model.ChangePasswordResponse{Success: true}, nil
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return apierror.New(apierror.CodeBadRequest, "password is required", "password", http.StatusBadRequest)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apierror.New(apierror.CodeBadRequest, "password is too short", "minimum 8 characters", http.StatusBadRequest)
	}
	if len(password) > MaxPasswordBytes {
		return apierror.New(apierror.CodeBadRequest, "password is too long", "maximum 72 bytes", http.StatusBadRequest)
	}
	return nil
}
