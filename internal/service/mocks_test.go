package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/model"
	"github.com/penshort/userauth/internal/repository"
)

// memoryStore is an in-memory UserStore. CreateUser enforces email
// uniqueness among live rows the way the database index does.
type memoryStore struct {
	mu     sync.Mutex
	nextID int32
	users  map[int32]*model.User

	// lookupGate, when set, blocks GetUserByEmail until it is released so
	// tests can line up concurrent registrations past the fast path.
	lookupGate *sync.WaitGroup

	lookupErr error
	createErr error

	lookups int
	creates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[int32]*model.User)}
}

func (m *memoryStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++

	if m.createErr != nil {
		return nil, m.createErr
	}

	for _, existing := range m.users {
		if existing.Email == user.Email && existing.DeletedAt == nil {
			return nil, &repository.StorageError{
				Op:         "create user",
				Constraint: "users_email_live_key",
				Err:        repository.ErrEmailExists,
			}
		}
	}

	m.nextID++
	now := time.Now().UTC()
	stored := *user
	stored.ID = m.nextID
	if stored.Active == nil {
		active := true
		stored.Active = &active
	}
	stored.CreatedAt = &now
	stored.UpdatedAt = &now
	m.users[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (m *memoryStore) GetUserByID(ctx context.Context, id int32) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (m *memoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := m.findByEmail(email)

	// Hold every caller here until all of them have read the store, so none
	// of them sees a row another caller inserts afterwards.
	if m.lookupGate != nil {
		m.lookupGate.Done()
		m.lookupGate.Wait()
	}
	return user, err
}

func (m *memoryStore) findByEmail(email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++

	if m.lookupErr != nil {
		return nil, m.lookupErr
	}

	for _, user := range m.users {
		if user.Email == email && user.DeletedAt == nil {
			out := *user
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryStore) counts() (lookups, creates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups, m.creates
}

// failingIssuer always fails to sign.
type failingIssuer struct{}

func (failingIssuer) Issue(auth.Claims) (string, error) {
	return "", &auth.SigningError{Err: errors.New("encoder unavailable")}
}
