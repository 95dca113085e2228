package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rocha19/userserver/internal/domain"
)

var _ domain.UserRepository = new(DBUserRepository)

type DBUserRepository struct {
	db *pgxpool.Pool
}

func NewDBUserRepository(db *pgxpool.Pool) *DBUserRepository {
	return &DBUserRepository{
		db: db,
	}
}

func (r *DBUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int32
	if err := r.db.QueryRow(ctx, query, user.Name, user.Email).Scan(&id); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = &id
	return nil
}

func (r *DBUserRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	query := `
		SELECT id, name, email
		FROM users
		WHERE id = $1
	`

	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}

// List returns all users in whatever order the store yields them.
func (r *DBUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, email FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.User])
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}

	return users, nil
}

func (r *DBUserRepository) Update(ctx context.Context, id int32, user domain.User) (int64, error) {
	query := `
		UPDATE users
		SET name = $1, email = $2
		WHERE id = $3
	`

	tag, err := r.db.Exec(ctx, query, user.Name, user.Email, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update user: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *DBUserRepository) Delete(ctx context.Context, id int32) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}

	return tag.RowsAffected(), nil
}
