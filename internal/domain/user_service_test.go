package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocha19/userserver/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users  map[int32]User
	nextID int32
	err    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int32]User{}, nextID: 1}
}

func (r *fakeRepo) Create(_ context.Context, user *User) error {
	if r.err != nil {
		return r.err
	}
	id := r.nextID
	r.nextID++
	user.ID = &id
	r.users[id] = *user
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int32) (*User, error) {
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *fakeRepo) List(context.Context) ([]User, error) {
	if r.err != nil {
		return nil, r.err
	}
	var users []User
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *fakeRepo) Update(_ context.Context, id int32, user User) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if _, ok := r.users[id]; !ok {
		return 0, nil
	}
	r.users[id] = User{ID: &id, Name: user.Name, Email: user.Email}
	return 1, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int32) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if _, ok := r.users[id]; !ok {
		return 0, nil
	}
	delete(r.users, id)
	return 1, nil
}

type recordingConsumer struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (c *recordingConsumer) Consume(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConsumer) Start(context.Context) {}
func (c *recordingConsumer) Stop()                 {}

func newTestService(repo UserRepository, consumer events.EventConsumer) *UserService {
	s := NewUserService(repo, consumer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestUserService_CreateIgnoresRequestID(t *testing.T) {
	repo := newFakeRepo()
	consumer := &recordingConsumer{}
	s := newTestService(repo, consumer)

	requested := int32(99)
	user, err := s.CreateUser(context.Background(), User{ID: &requested, Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)
	require.NotNil(t, user.ID)
	assert.Equal(t, int32(1), *user.ID)
	assert.Equal(t, "Ann", user.Name)

	require.Len(t, consumer.events, 1)
	ev := consumer.events[0]
	assert.Equal(t, EventUserCreated, ev.Type)
	assert.Equal(t, "user", ev.AggregateType)
	assert.Equal(t, "1", ev.AggregateID)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "a@x.com", ev.Data["email"])
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ev.Timestamp)
}

func TestUserService_CreateRepoError(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection refused")
	consumer := &recordingConsumer{}
	s := newTestService(repo, consumer)

	_, err := s.CreateUser(context.Background(), User{Name: "Ann", Email: "a@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, consumer.events)
}

func TestUserService_PublishFailureDoesNotFailMutation(t *testing.T) {
	for _, consumerErr := range []error{events.EventConsumerErrorFull, errors.New("broken")} {
		s := newTestService(newFakeRepo(), &recordingConsumer{err: consumerErr})

		user, err := s.CreateUser(context.Background(), User{Name: "Ann", Email: "a@x.com"})
		require.NoError(t, err)
		assert.NotNil(t, user.ID)
	}
}

func TestUserService_GetUser(t *testing.T) {
	s := newTestService(newFakeRepo(), nil)

	created, err := s.CreateUser(context.Background(), User{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	got, err := s.GetUser(context.Background(), *created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = s.GetUser(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_ListUsersNeverNil(t *testing.T) {
	s := newTestService(newFakeRepo(), nil)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserService_UpdateUser(t *testing.T) {
	repo := newFakeRepo()
	consumer := &recordingConsumer{}
	s := newTestService(repo, consumer)

	created, err := s.CreateUser(context.Background(), User{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	updated, err := s.UpdateUser(context.Background(), *created.ID, User{Name: "Anne", Email: "anne@x.com"})
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "Anne", repo.users[*created.ID].Name)

	updated, err = s.UpdateUser(context.Background(), 77, User{Name: "Nobody", Email: "n@x.com"})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Len(t, repo.users, 1)

	require.Len(t, consumer.events, 2)
	assert.Equal(t, EventUserUpdated, consumer.events[1].Type)
}

func TestUserService_DeleteUser(t *testing.T) {
	consumer := &recordingConsumer{}
	s := newTestService(newFakeRepo(), consumer)

	created, err := s.CreateUser(context.Background(), User{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(context.Background(), *created.ID))
	assert.ErrorIs(t, s.DeleteUser(context.Background(), *created.ID), ErrUserNotFound)

	require.Len(t, consumer.events, 2)
	assert.Equal(t, EventUserDeleted, consumer.events[1].Type)
	assert.NotContains(t, consumer.events[1].Data, "name")
}
