package service

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"teaching-workload/internal/model"
	"teaching-workload/pkg/apierror"
)

const invalidCredentialsMessage = "invalid credentials"

type userLookup interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

type tokenCodec interface {
	Issue(claims model.TokenClaims) (string, error)
	Verify(token string) (model.TokenClaims, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry model.AuditEntry)
}

type AuthService struct {
	users  userLookup
	hasher PasswordHasher
	tokens tokenCodec
	audit  auditRecorder

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users userLookup, hasher PasswordHasher, tokens tokenCodec, audit auditRecorder) *AuthService {
	if audit == nil {
		audit = noopAudit{}
	}

	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
	}
}

// VerifyCredentials returns the matching user, or nil when the username is
// unknown or the password is wrong. Only store failures produce an error.
func (s *AuthService) VerifyCredentials(ctx context.Context, username string, password string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		// Burn a comparison so an unknown username costs the same as a wrong password.
		s.hasher.Verify(password, s.timingHash())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil
	}

	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.LoginResponse, error) {
	user, err := s.VerifyCredentials(ctx, username, password)
	if err != nil {
		return model.LoginResponse{}, err
	}

	if user == nil {
		s.audit.Record(ctx, model.AuditEntry{
			Action:   model.AuditLogin,
			Actor:    model.AuditActor{Username: username, IP: ClientIPFromContext(ctx)},
			Status:   model.AuditStatusFailure,
			Resource: "user:" + username,
			Detail:   invalidCredentialsMessage,
		})
		return model.LoginResponse{}, apierror.New(apierror.CodeInvalidCredentials, invalidCredentialsMessage, "", http.StatusUnauthorized)
	}

	token, err := s.tokens.Issue(model.TokenClaims{UserID: user.ID, Username: user.Username})
	if err != nil {
		return model.LoginResponse{}, err
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:   model.AuditLogin,
		Actor:    actorFor(ctx, user.Identity()),
		Status:   model.AuditStatusSuccess,
		Resource: userResource(user.ID),
	})

	return model.LoginResponse{
		Token:               token,
		Role:                user.Role,
		IsPasswordTemporary: user.IsPasswordTemporary,
	}, nil
}

// Authenticate resolves a bearer token to the current state of its user.
// Role and temporary-password flag come from the store, not the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return model.Identity{}, apierror.New(apierror.CodeInvalidToken, "invalid or expired token", "", http.StatusUnauthorized)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Identity{}, apierror.New(apierror.CodeInvalidToken, "token subject no longer exists", "", http.StatusUnauthorized)
	}
	if err != nil {
		return model.Identity{}, err
	}

	return user.Identity(), nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (model.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.UserResponse{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("timing-equalizer")
	})
	return s.dummyHash
}
