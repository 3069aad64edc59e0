package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/agribusiness-pro/apiserver/internal/store"
	"github.com/agribusiness-pro/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) SetAvatar(_ context.Context, id int, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.AvatarKey = key
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) markVerified(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[id]
	user.EmailVerified = true
	f.users[id] = user
}

type fakeVerificationRepo struct {
	mu     sync.Mutex
	users  *fakeUserRepo
	tokens map[string]types.EmailVerification
}

func newFakeVerificationRepo(users *fakeUserRepo) *fakeVerificationRepo {
	return &fakeVerificationRepo{users: users, tokens: make(map[string]types.EmailVerification)}
}

func (f *fakeVerificationRepo) Create(_ context.Context, v types.EmailVerification) (types.EmailVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[v.Token] = v
	return v, nil
}

func (f *fakeVerificationRepo) Consume(_ context.Context, token string, now time.Time) (int, error) {
	f.mu.Lock()
	v, ok := f.tokens[token]
	if !ok || v.ConsumedAt != nil || !v.ExpiresAt.After(now) {
		f.mu.Unlock()
		return 0, store.ErrNotFound
	}
	v.ConsumedAt = &now
	f.tokens[token] = v
	f.mu.Unlock()

	f.users.markVerified(v.UserID)
	return v.UserID, nil
}

func (f *fakeVerificationRepo) DeleteForUser(_ context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, v := range f.tokens {
		if v.UserID == userID {
			delete(f.tokens, token)
		}
	}
	return nil
}

func (f *fakeVerificationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []types.VerificationEvent
}

func (f *fakePublisher) PublishJSON(_ context.Context, channel string, value any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	event, ok := value.(types.VerificationEvent)
	if !ok {
		return "", errors.New("unexpected payload")
	}
	if channel != "user.verification" {
		return "", errors.New("unexpected channel " + channel)
	}
	f.events = append(f.events, event)
	return "msg", nil
}

func (f *fakePublisher) last() (types.VerificationEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return types.VerificationEvent{}, false
	}
	return f.events[len(f.events)-1], true
}
