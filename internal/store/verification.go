package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agribusiness-pro/apiserver/types"
)

// VerificationRepository handles persistence for email verification tokens.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, v types.EmailVerification) (types.EmailVerification, error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO email_verifications (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, v.Token, v.UserID, v.ExpiresAt, v.CreatedAt); err != nil {
		return types.EmailVerification{}, mapWriteError(err)
	}
	return v, nil
}

// Consume marks an unexpired, unused token as used and flags its user as
// verified in a single transaction. It returns the verified user's ID, or
// ErrNotFound when the token is unknown, expired or already consumed.
func (r *VerificationRepository) Consume(ctx context.Context, token string, now time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const consumeQuery = `
		UPDATE email_verifications
		SET consumed_at = $2
		WHERE token = $1 AND consumed_at IS NULL AND expires_at > $2
		RETURNING user_id`
	var userID int
	if err := tx.QueryRowContext(ctx, consumeQuery, token, now).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("consume verification token: %w", err)
	}

	const verifyQuery = `UPDATE users SET email_verified = TRUE, updated_at = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, verifyQuery, now, userID); err != nil {
		return 0, fmt.Errorf("mark email verified: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

// DeleteForUser removes outstanding tokens for a user, used before reissuing.
func (r *VerificationRepository) DeleteForUser(ctx context.Context, userID int) error {
	const query = `DELETE FROM email_verifications WHERE user_id = $1 AND consumed_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
