package server

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/rocha19/userserver/internal/domain"
)

// memoryUserRepo is an in-process stand-in for the users table with the same
// id assignment (a sequence starting at 1).
type memoryUserRepo struct {
	mu     sync.Mutex
	users  map[int32]domain.User
	nextID int32
	err    error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[int32]domain.User{}, nextID: 1}
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	id := r.nextID
	r.nextID++
	user.ID = &id
	r.users[id] = domain.User{ID: &id, Name: user.Name, Email: user.Email}
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id int32) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *memoryUserRepo) List(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	users := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return *users[i].ID < *users[j].ID })
	return users, nil
}

func (r *memoryUserRepo) Update(_ context.Context, id int32, user domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	if _, ok := r.users[id]; !ok {
		return 0, nil
	}
	r.users[id] = domain.User{ID: &id, Name: user.Name, Email: user.Email}
	return 1, nil
}

func (r *memoryUserRepo) Delete(_ context.Context, id int32) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	if _, ok := r.users[id]; !ok {
		return 0, nil
	}
	delete(r.users, id)
	return 1, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandlers(repo domain.UserRepository, updateMissingIsNotFound bool) *UserHandlers {
	logger := discardLogger()
	return NewUserHandlers(domain.NewUserService(repo, nil, logger), logger, updateMissingIsNotFound)
}
