package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/agribusiness-pro/apiserver/types"
)

const userColumns = `id, first_name, last_name, email, phone, organization, user_type, location, bio,
		avatar_key, email_verified, password_hash, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var userType string
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.Organization,
		&userType,
		&user.Location,
		&user.Bio,
		&user.AvatarKey,
		&user.EmailVerified,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.UserType = types.UserType(userType)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks a user up by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (first_name, last_name, email, phone, organization, user_type, location, bio,
			avatar_key, email_verified, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.Organization,
		string(user.UserType),
		user.Location,
		user.Bio,
		user.AvatarKey,
		user.EmailVerified,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapWriteError(err)
	}
	return user, nil
}

// UpdateProfile writes the mutable profile columns of user. Email,
// password hash and verification state are never touched here.
func (r *UserRepository) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	query := `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			phone = $3,
			organization = $4,
			user_type = $5,
			location = $6,
			bio = $7,
			updated_at = $8
		WHERE id = $9
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Organization,
		string(user.UserType),
		user.Location,
		user.Bio,
		time.Now().UTC(),
		user.ID,
	))
}

// SetAvatar records the object storage key of the user's profile picture.
func (r *UserRepository) SetAvatar(ctx context.Context, id int, key string) error {
	const query = `UPDATE users SET avatar_key = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, key, time.Now().UTC(), id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
