package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/quizdesk/quizdesk-lms/internal/db"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	keep, err := dbh.Conn(ctx)
	if err != nil {
		t.Fatalf("pin conn: %v", err)
	}
	t.Cleanup(func() {
		_ = keep.Close()
		_ = dbh.Close()
	})
	return NewStore(dbh)
}

func seedUser(t *testing.T, s *Store, id, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := s.db.ExecContext(context.Background(),
		`INSERT INTO users (id, username, role, pass_hash) VALUES ($1,$2,'student',$3)`,
		id, id, string(hash)); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "stu-1", "hunter2")

	if err := s.ChangePassword(ctx, "stu-1", "hunter2", "correct horse"); err != nil {
		t.Fatalf("change: %v", err)
	}
	var hash string
	if err := s.db.QueryRowContext(ctx, `SELECT pass_hash FROM users WHERE id='stu-1'`).Scan(&hash); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")) != nil {
		t.Fatalf("stored hash does not match the new password")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")) == nil {
		t.Fatalf("old password still verifies")
	}
}

func TestChangePasswordRejections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "stu-1", "hunter2")

	if err := s.ChangePassword(ctx, "stu-1", "wrong", "next"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong old password: want ErrBadCredentials, got %v", err)
	}
	if err := s.ChangePassword(ctx, "stu-1", "hunter2", ""); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("empty new password: want ErrPasswordRequired, got %v", err)
	}
	if err := s.ChangePassword(ctx, "nobody", "x", "y"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: want ErrNotFound, got %v", err)
	}

	var hash string
	if err := s.db.QueryRowContext(ctx, `SELECT pass_hash FROM users WHERE id='stu-1'`).Scan(&hash); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")) != nil {
		t.Fatalf("rejected change must leave the hash untouched")
	}
}
