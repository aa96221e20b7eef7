package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"teaching-workload/internal/model"
)

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: map[int64]model.User{}}
}

func (s *memUserStore) FindByID(_ context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memUserStore) FindFirstByRole(_ context.Context, role model.Role) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *model.User
	for _, u := range s.byID {
		if u.Role != role {
			continue
		}
		if found == nil || u.ID < found.ID {
			candidate := u
			found = &candidate
		}
	}
	if found == nil {
		return model.User{}, model.ErrUserNotFound
	}
	return *found, nil
}

func (s *memUserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memUserStore) Create(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Username == u.Username {
			return model.User{}, model.ErrUserAlreadyExists
		}
	}

	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.byID[u.ID] = u
	return u, nil
}

func (s *memUserStore) Update(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; !ok {
		return model.User{}, model.ErrUserNotFound
	}
	for _, existing := range s.byID {
		if existing.ID != u.ID && existing.Username == u.Username {
			return model.User{}, model.ErrUserAlreadyExists
		}
	}

	u.UpdatedAt = time.Now().UTC()
	s.byID[u.ID] = u
	return u, nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.IsPasswordTemporary = false
	u.UpdatedAt = time.Now().UTC()
	s.byID[userID] = u
	return nil
}

func (s *memUserStore) CountByRole(_ context.Context, role model.Role) (int, error) {
	return s.count(role), nil
}

func (s *memUserStore) count(role model.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, u := range s.byID {
		if u.Role == role {
			n++
		}
	}
	return n
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action+":"+e.Status)
	}
	return out
}

func fastHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost)
}

func seedUser(store *memUserStore, hasher PasswordHasher, username string, password string, role model.Role, temporary bool) model.User {
	hash, err := hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	u, err := store.Create(context.Background(), model.User{
		Username:            username,
		PasswordHash:        hash,
		Role:                role,
		IsPasswordTemporary: temporary,
	})
	if err != nil {
		panic(err)
	}
	return u
}
