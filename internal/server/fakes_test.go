package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agribusiness-pro/apiserver/internal/store"
	"github.com/agribusiness-pro/apiserver/types"
)

type memoryUsers struct {
	mu            sync.Mutex
	nextID        int
	users         map[int]types.User
	verifications map[string]types.EmailVerification
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		nextID:        1,
		users:         make(map[int]types.User),
		verifications: make(map[string]types.EmailVerification),
	}
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) SetAvatar(_ context.Context, id int, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.AvatarKey = key
	m.users[id] = user
	return nil
}

// memoryVerifications shares state with memoryUsers so consuming a token
// flips the user's verified flag.
type memoryVerifications struct {
	users *memoryUsers
}

func (v memoryVerifications) Create(_ context.Context, ev types.EmailVerification) (types.EmailVerification, error) {
	v.users.mu.Lock()
	defer v.users.mu.Unlock()
	v.users.verifications[ev.Token] = ev
	return ev, nil
}

func (v memoryVerifications) Consume(_ context.Context, token string, now time.Time) (int, error) {
	v.users.mu.Lock()
	defer v.users.mu.Unlock()
	ev, ok := v.users.verifications[token]
	if !ok || ev.ConsumedAt != nil || !ev.ExpiresAt.After(now) {
		return 0, store.ErrNotFound
	}
	ev.ConsumedAt = &now
	v.users.verifications[token] = ev
	user := v.users.users[ev.UserID]
	user.EmailVerified = true
	v.users.users[ev.UserID] = user
	return ev.UserID, nil
}

func (v memoryVerifications) DeleteForUser(_ context.Context, userID int) error {
	v.users.mu.Lock()
	defer v.users.mu.Unlock()
	for token, ev := range v.users.verifications {
		if ev.UserID == userID {
			delete(v.users.verifications, token)
		}
	}
	return nil
}
