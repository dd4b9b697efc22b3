package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/penshort/userauth/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const userColumns = `id, first_name, last_name, active, email, encrypted_password, created_at, updated_at, deleted_at`

// CreateUser inserts a new user and returns the stored row, including the
// generated id and timestamps.
// A duplicate live email fails with a *StorageError matching ErrEmailExists.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO users (first_name, last_name, active, email, encrypted_password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	active := true
	if user.Active != nil {
		active = *user.Active
	}

	created, err := scanUser(r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		active,
		user.Email,
		user.PasswordHash,
	))
	if err != nil {
		return nil, wrapStorageError("create user", err, ErrEmailExists)
	}

	return created, nil
}

// GetUserByID retrieves a live user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id int32) (*model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStorageError("get user by id", err, nil)
	}

	return user, nil
}

// GetUserByEmail retrieves a live user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStorageError("get user by email", err, nil)
	}

	return user, nil
}

// SoftDeleteUser marks a user as deleted, freeing its email for reuse.
func (r *Repository) SoftDeleteUser(ctx context.Context, id int32) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return wrapStorageError("delete user", err, nil)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Active,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
