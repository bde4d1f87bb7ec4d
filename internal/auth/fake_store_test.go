package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/store"
)

// memUsers is an in-memory UserStore enforcing unique username and email.
type memUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]*models.User
	fail  error
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*models.User{}}
}

func (m *memUsers) CreateUser(_ context.Context, username, email, hashedPw, avatar string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return nil, store.ErrConflict
		}
	}
	m.seq++
	now := time.Now()
	u := &models.User{
		ID:        "user-" + strconv.Itoa(m.seq),
		Username:  username,
		Email:     email,
		Password:  hashedPw,
		Avatar:    avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}
