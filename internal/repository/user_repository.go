package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/login-service/internal/domain"
)

// UserRepository defines persistence access for platform accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByGlobalID(ctx context.Context, globalID string) (*domain.User, error)
	UpdateLastToken(ctx context.Context, id int64, token string) error
}

// IsNotFound reports whether the error means no matching row.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `platform_user_id, platform_global_id, username, nickname, password_hash, auth_type, enabled, banned, last_token, created_at, last_login`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (platform_user_id, platform_global_id, username, nickname, password_hash, auth_type, enabled, banned, last_token)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, last_login`

	return r.pool.QueryRow(ctx, query,
		user.PlatformUserID,
		user.PlatformGlobalID,
		user.Username,
		user.Nickname,
		user.PasswordHash,
		user.AuthType,
		user.Enabled,
		user.Banned,
		user.LastToken,
	).Scan(&user.CreatedAt, &user.LastLogin)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE platform_user_id=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepository) GetByGlobalID(ctx context.Context, globalID string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE platform_global_id=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, globalID))
}

func (r *userRepository) UpdateLastToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE users SET last_token=$1, last_login=NOW() WHERE platform_user_id=$2`

	cmd, err := r.pool.Exec(ctx, query, token, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) scanOne(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.PlatformUserID,
		&user.PlatformGlobalID,
		&user.Username,
		&user.Nickname,
		&user.PasswordHash,
		&user.AuthType,
		&user.Enabled,
		&user.Banned,
		&user.LastToken,
		&user.CreatedAt,
		&user.LastLogin,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
