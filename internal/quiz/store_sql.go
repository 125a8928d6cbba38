package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLStore implements Store over database/sql with either the modernc
// sqlite driver or the pgx stdlib driver. On postgres, attempt locking is
// SELECT ... FOR UPDATE; on sqlite the single-writer model plus
// busy_timeout serializes writers, so the suffix is elided.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) forUpdate() string {
	if s.driver == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	var start sql.NullInt64
	if q.StartTime != nil {
		start = sql.NullInt64{Int64: q.StartTime.Unix(), Valid: true}
	}
	created := q.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,kind,owner_id,subject_id,duration_min,start_time,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, kind=EXCLUDED.kind, duration_min=EXCLUDED.duration_min,
			start_time=EXCLUDED.start_time, questions_json=EXCLUDED.questions_json`,
		q.ID, q.Title, q.Kind, q.OwnerID, q.SubjectID, q.Duration, start, string(qj), created)
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,kind,owner_id,subject_id,duration_min,start_time,questions_json,created_at
		FROM quizzes WHERE id=$1`, id)
	return scanQuiz(row)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, subjectID string) ([]Quiz, error) {
	q := `SELECT id,title,kind,owner_id,subject_id,duration_min,start_time,questions_json,created_at FROM quizzes`
	args := []any{}
	if subjectID != "" {
		q += ` WHERE subject_id=$1`
		args = append(args, subjectID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quiz
	for rows.Next() {
		qz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qz)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (Quiz, error) {
	var q Quiz
	var start sql.NullInt64
	var qjson string
	if err := row.Scan(&q.ID, &q.Title, &q.Kind, &q.OwnerID, &q.SubjectID, &q.Duration, &start, &qjson, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	if start.Valid {
		t := time.Unix(start.Int64, 0).UTC()
		q.StartTime = &t
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("decode questions for quiz %s: %w", q.ID, err)
	}
	return q, nil
}

const attemptCols = `id,quiz_id,student_id,status,start_time,submitted_at,duration_taken,total_score,graded,visible_to_student,show_answers,feedback`

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var start int64
	var submitted sql.NullInt64
	var feedback sql.NullString
	if err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &start, &submitted,
		&a.DurationTaken, &a.TotalScore, &a.Graded, &a.VisibleToStudent, &a.ShowAnswers, &feedback); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.StartTime = time.Unix(start, 0).UTC()
	if submitted.Valid {
		t := time.Unix(submitted.Int64, 0).UTC()
		a.SubmittedAt = &t
	}
	a.Feedback = feedback.String
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM attempts`
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id=$%d", opts.StudentID)
	}
	if opts.Status != "" {
		add("status=$%d", opts.Status)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY start_time DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const answerCols = `id,attempt_id,question_id,submitted_answer,is_correct,score,auto_gradable,graded,feedback,submitted_at`

func scanAnswer(row rowScanner) (AnswerRecord, error) {
	var rec AnswerRecord
	var feedback sql.NullString
	var submitted int64
	if err := row.Scan(&rec.ID, &rec.AttemptID, &rec.QuestionID, &rec.Submitted, &rec.IsCorrect,
		&rec.Score, &rec.AutoGradable, &rec.Graded, &feedback, &submitted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnswerRecord{}, ErrAnswerNotFound
		}
		return AnswerRecord{}, err
	}
	rec.Feedback = feedback.String
	rec.SubmittedAt = time.Unix(submitted, 0).UTC()
	return rec, nil
}

func listAnswers(ctx context.Context, q queryer, attemptID, lockSuffix string) ([]AnswerRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+answerCols+` FROM answers WHERE attempt_id=$1 ORDER BY submitted_at, id`+lockSuffix, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerRecord
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]AnswerRecord, error) {
	return listAnswers(ctx, s.db, attemptID, "")
}

func (s *SQLStore) ListAnswersForQuiz(ctx context.Context, opts AnswerListOpts) ([]AnswerRecord, error) {
	q := `SELECT ans.id,ans.attempt_id,ans.question_id,ans.submitted_answer,ans.is_correct,ans.score,ans.auto_gradable,ans.graded,ans.feedback,ans.submitted_at
		FROM answers ans
		JOIN attempts att ON att.id = ans.attempt_id
		WHERE att.quiz_id=$1 AND att.submitted_at IS NOT NULL`
	args := []any{opts.QuizID}
	if opts.Graded != nil {
		args = append(args, *opts.Graded)
		q += fmt.Sprintf(" AND ans.graded=$%d", len(args))
	}
	q += " ORDER BY att.id, ans.submitted_at"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerRecord
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InTx begins a transaction, runs fn, and commits unless fn errs. Lock-wait
// and busy errors are normalized to ErrContention so callers can retry.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapContention(err)
	}
	t := &sqlTx{tx: dbTx, store: s}
	if err := fn(t); err != nil {
		_ = dbTx.Rollback()
		return mapContention(err)
	}
	if err := dbTx.Commit(); err != nil {
		return mapContention(err)
	}
	return nil
}

func mapContention(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 55P03 lock_not_available, 40001 serialization_failure, 40P01 deadlock_detected
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %v", ErrContention, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ErrContention, err)
	}
	return err
}

type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) GetOrCreateInProgress(ctx context.Context, studentID, quizID string, now time.Time) (Attempt, error) {
	// A completed attempt ends the conversation before any insert.
	row := t.tx.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE quiz_id=$1 AND student_id=$2 AND submitted_at IS NOT NULL`, quizID, studentID)
	if _, err := scanAttempt(row); err == nil {
		return Attempt{}, ErrAlreadyCompleted
	} else if !errors.Is(err, ErrAttemptNotFound) {
		return Attempt{}, err
	}

	row = t.tx.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE quiz_id=$1 AND student_id=$2 AND submitted_at IS NULL`+t.store.forUpdate(), quizID, studentID)
	a, err := scanAttempt(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAttemptNotFound) {
		return Attempt{}, err
	}

	// Unique (quiz_id, student_id) makes the insert race-safe: the loser's
	// insert is a no-op and the reread below returns the winner's row.
	id := newID()
	res, err := t.tx.ExecContext(ctx, `INSERT INTO attempts (id,quiz_id,student_id,status,start_time,duration_taken,total_score,graded,visible_to_student,show_answers)
		VALUES ($1,$2,$3,$4,$5,0,0,$6,$7,$8)
		ON CONFLICT (quiz_id,student_id) DO NOTHING`,
		id, quizID, studentID, StatusInProgress, now.Unix(), false, false, false)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.LockAttempt(ctx, existingAttemptID(ctx, t.tx, quizID, studentID))
	}
	return Attempt{
		ID:        id,
		QuizID:    quizID,
		StudentID: studentID,
		Status:    StatusInProgress,
		StartTime: now.UTC().Truncate(time.Second),
	}, nil
}

func existingAttemptID(ctx context.Context, tx *sql.Tx, quizID, studentID string) string {
	var id string
	_ = tx.QueryRowContext(ctx, `SELECT id FROM attempts WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID).Scan(&id)
	return id
}

func (t *sqlTx) LockAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`+t.store.forUpdate(), attemptID)
	return scanAttempt(row)
}

func (t *sqlTx) ListAnswers(ctx context.Context, attemptID string) ([]AnswerRecord, error) {
	return listAnswers(ctx, t.tx, attemptID, "")
}

func (t *sqlTx) InsertAnswer(ctx context.Context, rec AnswerRecord) (AnswerRecord, error) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO answers (id,attempt_id,question_id,submitted_answer,is_correct,score,auto_gradable,graded,feedback,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (attempt_id,question_id) DO NOTHING`,
		rec.ID, rec.AttemptID, rec.QuestionID, rec.Submitted, rec.IsCorrect, rec.Score,
		rec.AutoGradable, rec.Graded, nullString(rec.Feedback), rec.SubmittedAt.Unix())
	if err != nil {
		return AnswerRecord{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return AnswerRecord{}, ErrDuplicateAnswer
	}
	return rec, nil
}

func (t *sqlTx) DeleteAnswers(ctx context.Context, attemptID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM answers WHERE attempt_id=$1`, attemptID)
	return err
}

func (t *sqlTx) Finalize(ctx context.Context, attemptID string, status string, submittedAt time.Time, durationTaken int, totalScore float64, graded bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE attempts
		SET status=$1, submitted_at=$2, duration_taken=$3, total_score=$4, graded=$5
		WHERE id=$6 AND submitted_at IS NULL`,
		status, submittedAt.Unix(), durationTaken, totalScore, graded, attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := t.LockAttempt(ctx, attemptID); errors.Is(err, ErrAttemptNotFound) {
			return ErrAttemptNotFound
		}
		return ErrAlreadyFinalized
	}
	return nil
}

func (t *sqlTx) UpdateAnswerGrade(ctx context.Context, attemptID, questionID string, score float64, isCorrect bool, feedback string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE answers
		SET score=$1, is_correct=$2, graded=$3, feedback=$4
		WHERE attempt_id=$5 AND question_id=$6`,
		score, isCorrect, true, nullString(feedback), attemptID, questionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAnswerNotFound
	}
	return nil
}

func (t *sqlTx) SetAttemptGrading(ctx context.Context, attemptID string, totalScore float64, graded bool) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE attempts SET total_score=$1, graded=$2 WHERE id=$3`,
		totalScore, graded, attemptID)
	return err
}

func (t *sqlTx) SetVisibility(ctx context.Context, attemptID string, visibleToStudent, showAnswers bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE attempts SET visible_to_student=$1, show_answers=$2 WHERE id=$3`,
		visibleToStudent, showAnswers, attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (t *sqlTx) SetFeedback(ctx context.Context, attemptID, feedback string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE attempts SET feedback=$1 WHERE id=$2`, nullString(feedback), attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
