package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/rocha19/userserver/internal/domain"
	"github.com/rocha19/userserver/internal/wire"
)

const (
	msgUserCreated   = "User created"
	msgUserUpdated   = "User updated"
	msgUserDeleted   = "User deleted"
	msgUserNotFound  = "User not found"
	msgNotFound      = "Not Found"
	msgInternalError = "Internal error"
)

// UserService is what the handlers need from domain.UserService.
type UserService interface {
	CreateUser(ctx context.Context, req domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id int32) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, id int32, req domain.User) (bool, error)
	DeleteUser(ctx context.Context, id int32) error
}

// HandlerFunc maps one request to one response. It never fails: every error
// is logged and folded into the response.
type HandlerFunc func(ctx context.Context, req wire.Request) wire.Response

type UserHandlers struct {
	users  UserService
	logger *slog.Logger
	// updateMissingIsNotFound makes Update answer 404 when no row matched,
	// like Delete does. Off by default.
	updateMissingIsNotFound bool
}

func NewUserHandlers(users UserService, logger *slog.Logger, updateMissingIsNotFound bool) *UserHandlers {
	return &UserHandlers{
		users:                   users,
		logger:                  logger,
		updateMissingIsNotFound: updateMissingIsNotFound,
	}
}

func (h *UserHandlers) Create(ctx context.Context, req wire.Request) wire.Response {
	user, err := wire.DecodeUser(req.Body)
	if err != nil {
		return h.internalError("failed to decode create user request", err)
	}

	created, err := h.users.CreateUser(ctx, user)
	if err != nil {
		return h.internalError("failed to create user", err, "email", user.Email)
	}

	if created.ID != nil {
		h.logger.Info("user created", "id", *created.ID)
	}
	return wire.Response{Status: wire.StatusOK, Body: msgUserCreated}
}

func (h *UserHandlers) GetOne(ctx context.Context, req wire.Request) wire.Response {
	id, err := wire.ParseID(req.ID)
	if err != nil {
		return h.internalError("failed to parse user id", err)
	}

	user, err := h.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return wire.Response{Status: wire.StatusNotFound, Body: msgUserNotFound}
		}
		return h.internalError("failed to get user", err, "id", id)
	}

	return h.jsonResponse(user)
}

func (h *UserHandlers) GetAll(ctx context.Context, _ wire.Request) wire.Response {
	users, err := h.users.ListUsers(ctx)
	if err != nil {
		return h.internalError("failed to list users", err)
	}

	return h.jsonResponse(users)
}

// Update answers 200 even when no row has the id unless
// updateMissingIsNotFound is set.
func (h *UserHandlers) Update(ctx context.Context, req wire.Request) wire.Response {
	id, err := wire.ParseID(req.ID)
	if err != nil {
		return h.internalError("failed to parse user id", err)
	}

	user, err := wire.DecodeUser(req.Body)
	if err != nil {
		return h.internalError("failed to decode update user request", err, "id", id)
	}

	updated, err := h.users.UpdateUser(ctx, id, user)
	if err != nil {
		return h.internalError("failed to update user", err, "id", id)
	}
	if !updated {
		h.logger.Info("update matched no user", "id", id)
		if h.updateMissingIsNotFound {
			return wire.Response{Status: wire.StatusNotFound, Body: msgUserNotFound}
		}
	}

	return wire.Response{Status: wire.StatusOK, Body: msgUserUpdated}
}

func (h *UserHandlers) Delete(ctx context.Context, req wire.Request) wire.Response {
	id, err := wire.ParseID(req.ID)
	if err != nil {
		return h.internalError("failed to parse user id", err)
	}

	if err := h.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return wire.Response{Status: wire.StatusNotFound, Body: msgUserNotFound}
		}
		return h.internalError("failed to delete user", err, "id", id)
	}

	return wire.Response{Status: wire.StatusOK, Body: msgUserDeleted}
}

// NotFound answers requests no route matched.
func NotFound(context.Context, wire.Request) wire.Response {
	return wire.Response{Status: wire.StatusNotFound, Body: msgNotFound}
}

func (h *UserHandlers) jsonResponse(v interface{}) wire.Response {
	body, err := json.Marshal(v)
	if err != nil {
		return h.internalError("failed to encode response", err)
	}
	return wire.Response{Status: wire.StatusOK, Body: string(body)}
}

func (h *UserHandlers) internalError(msg string, err error, attrs ...any) wire.Response {
	h.logger.Error(msg, append([]any{"error", err}, attrs...)...)
	return wire.Response{Status: wire.StatusInternalServerError, Body: msgInternalError}
}
