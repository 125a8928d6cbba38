// Package users owns the credential rows behind login and password
// maintenance.
package users

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrBadCredentials   = errors.New("bad credentials")
	ErrPasswordRequired = errors.New("password required")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ChangePassword verifies the caller's current password and replaces the
// stored hash. The old password must match even right after an admin
// reset, so a stolen session alone cannot rotate the credential.
func (s *Store) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT pass_hash FROM users WHERE id=$1`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET pass_hash=$1 WHERE id=$2`, next, userID)
	return err
}
