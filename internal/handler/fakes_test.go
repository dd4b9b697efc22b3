package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/middleware"
	"github.com/penshort/userauth/internal/model"
	"github.com/penshort/userauth/internal/repository"
	"github.com/penshort/userauth/internal/service"
)

// fakeStore is an in-memory service.UserStore with a unique email constraint.
type fakeStore struct {
	mu     sync.Mutex
	nextID int32
	users  map[int32]*model.User
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int32]*model.User)}
}

func (s *fakeStore) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, repository.ErrEmailExists
		}
	}
	s.nextID++
	now := time.Now().UTC()
	created := *u
	created.ID = s.nextID
	created.CreatedAt = &now
	created.UpdatedAt = &now
	s.users[created.ID] = &created
	return &created, nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id int32) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type testEnv struct {
	store  *fakeStore
	tokens *auth.TokenService
	router *chi.Mux
}

// newTestEnv wires the user and auth handlers onto a chi router the same
// way the API binary does, minus Redis.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	store := newFakeStore()
	svc := service.NewUserService(store, tokens, service.UserServiceConfig{
		PasswordCost: 4,
		TokenTTL:     time.Hour,
	}, nil)

	logger := discardLogger()
	users := NewUserHandler(svc, logger)
	authH := NewAuthHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.MaxBodySize(1 << 10))
	r.Post("/users", users.Create)
	r.Get("/users/{id}", users.Get)
	r.Post("/auth/token", authH.Token)
	r.With(middleware.Authenticate(middleware.AuthConfig{Logger: logger, Tokens: tokens})).
		Get("/auth/me", authH.Me)

	return &testEnv{store: store, tokens: tokens, router: r}
}
