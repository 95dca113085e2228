package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocha19/userserver/internal/events"
)

type UserService struct {
	userRepo      UserRepository
	eventConsumer events.EventConsumer
	logger        *slog.Logger
	now           func() time.Time
}

func NewUserService(userRepo UserRepository, eventConsumer events.EventConsumer, logger *slog.Logger) *UserService {
	if eventConsumer == nil {
		eventConsumer = events.NopConsumer{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UserService{
		userRepo:      userRepo,
		eventConsumer: eventConsumer,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateUser persists a new user. Any id carried by req is ignored.
func (s *UserService) CreateUser(ctx context.Context, req User) (*User, error) {
	user := &User{
		Name:  req.Name,
		Email: req.Email,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if user.ID != nil {
		s.publish(ctx, newUserEvent(EventUserCreated, *user.ID, *user, s.now()))
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int32) (*User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// ListUsers returns every user in store order. The result is never nil.
func (s *UserService) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UpdateUser overwrites name and email of the user with the given id. It
// reports whether a row matched; a missing id is not an error.
func (s *UserService) UpdateUser(ctx context.Context, id int32, req User) (bool, error) {
	rows, err := s.userRepo.Update(ctx, id, req)
	if err != nil {
		return false, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	if rows == 0 {
		return false, nil
	}

	s.publish(ctx, newUserEvent(EventUserUpdated, id, req, s.now()))
	return true, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int32) error {
	rows, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	s.publish(ctx, newUserEvent(EventUserDeleted, id, User{}, s.now()))
	return nil
}

// publish hands the event to the consumer. Event recording never changes the
// outcome of the mutation that produced it.
func (s *UserService) publish(ctx context.Context, event events.Event) {
	if err := s.eventConsumer.Consume(ctx, event); err != nil {
		if errors.Is(err, events.EventConsumerErrorFull) {
			s.logger.Warn("event consumer is full, dropping event", "type", event.Type, "aggregate_id", event.AggregateID)
			return
		}
		s.logger.Error("failed to publish event", "error", err, "type", event.Type, "aggregate_id", event.AggregateID)
	}
}
