// Package enroll is the attempt engine's boundary to subject enrollment.
// The engine only ever asks one question of it: is this student enrolled
// in this subject.
package enroll

import (
	"context"
	"database/sql"
	"errors"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) IsEnrolled(ctx context.Context, studentID, subjectID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE student_id=$1 AND subject_id=$2`, studentID, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Enroll(ctx context.Context, studentID, subjectID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (student_id, subject_id) VALUES ($1,$2)
		 ON CONFLICT (student_id, subject_id) DO NOTHING`, studentID, subjectID)
	return err
}

func (s *Store) Unenroll(ctx context.Context, studentID, subjectID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE student_id=$1 AND subject_id=$2`, studentID, subjectID)
	return err
}

func (s *Store) ListSubjects(ctx context.Context, studentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id FROM enrollments WHERE student_id=$1 ORDER BY subject_id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
