package domain

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
)

// User is the only persisted entity. ID is nil until the store assigns one.
type User struct {
	ID    *int32 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserRepository interface {
	// Create inserts the user and sets user.ID to the store-assigned id.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int32) (*User, error)
	List(ctx context.Context) ([]User, error)
	// Update and Delete report the number of rows the statement matched.
	Update(ctx context.Context, id int32, user User) (int64, error)
	Delete(ctx context.Context, id int32) (int64, error)
}
