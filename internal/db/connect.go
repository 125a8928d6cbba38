package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:quizdesk.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
		// foreign_keys is per-connection in sqlite; carrying it in the DSN
		// is the only way every pooled connection gets it.
		if !strings.Contains(dsn, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizdesk?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureAdmin inserts the bootstrap admin account if no user with that
// username exists. An existing row is left untouched, hash included.
func EnsureAdmin(ctx context.Context, db *sql.DB, username, passHash string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO users (id, username, role, pass_hash)
		VALUES ($1, $2, 'admin', $3)
		ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), username, passHash)
	return err
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// One attempt per (quiz, student) and one answer per (attempt, question)
// are unique constraints, not application logic: concurrent inserts must
// lose at the storage layer.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL,
  pass_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS enrollments (
  student_id TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  PRIMARY KEY (student_id, subject_id)
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT 'quiz',
  owner_id TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  duration_min INTEGER NOT NULL DEFAULT 0,
  start_time INTEGER,
  questions_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  status TEXT NOT NULL,
  start_time INTEGER NOT NULL,
  submitted_at INTEGER,
  duration_taken INTEGER NOT NULL DEFAULT 0,
  total_score REAL NOT NULL DEFAULT 0,
  graded INTEGER NOT NULL DEFAULT 0,
  visible_to_student INTEGER NOT NULL DEFAULT 0,
  show_answers INTEGER NOT NULL DEFAULT 0,
  feedback TEXT,
  UNIQUE (quiz_id, student_id)
);

CREATE TABLE IF NOT EXISTS answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  submitted_answer TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0,
  score REAL NOT NULL DEFAULT 0,
  auto_gradable INTEGER NOT NULL DEFAULT 0,
  graded INTEGER NOT NULL DEFAULT 0,
  feedback TEXT,
  submitted_at INTEGER NOT NULL,
  UNIQUE (attempt_id, question_id)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL,
  pass_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS enrollments (
  student_id TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  PRIMARY KEY (student_id, subject_id)
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT 'quiz',
  owner_id TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  duration_min INTEGER NOT NULL DEFAULT 0,
  start_time BIGINT,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  status TEXT NOT NULL,
  start_time BIGINT NOT NULL,
  submitted_at BIGINT,
  duration_taken INTEGER NOT NULL DEFAULT 0,
  total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  graded BOOLEAN NOT NULL DEFAULT FALSE,
  visible_to_student BOOLEAN NOT NULL DEFAULT FALSE,
  show_answers BOOLEAN NOT NULL DEFAULT FALSE,
  feedback TEXT,
  UNIQUE (quiz_id, student_id)
);

CREATE TABLE IF NOT EXISTS answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  submitted_answer TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  auto_gradable BOOLEAN NOT NULL DEFAULT FALSE,
  graded BOOLEAN NOT NULL DEFAULT FALSE,
  feedback TEXT,
  submitted_at BIGINT NOT NULL,
  UNIQUE (attempt_id, question_id)
);
`
