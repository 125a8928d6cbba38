package quiz

import "time"

// Question types. A Question is a tagged variant: which of the optional
// fields are meaningful depends on Type.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeIdentification = "identification"
	TypeEssay          = "essay"
)

// Quiz types.
const (
	KindQuiz = "quiz"
	KindExam = "exam"
)

type Question struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"` // multiple_choice, true_false, identification, essay
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`        // multiple_choice only, >=2 entries
	CorrectAnswer string   `json:"correct_answer,omitempty"` // index-as-string / "true"|"false" / free text; empty for essay
	WordLimit     int      `json:"word_limit,omitempty"`     // essay only, 0 = unlimited
	Points        float64  `json:"points"`
	OrderIndex    int      `json:"order_index"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Kind      string     `json:"kind"` // quiz|exam
	OwnerID   string     `json:"owner_id"`
	SubjectID string     `json:"subject_id"`
	Duration  int        `json:"duration_minutes,omitempty"` // 0 = untimed
	StartTime *time.Time `json:"start_time,omitempty"`       // nil = available immediately
	Questions []Question `json:"questions"`
	CreatedAt int64      `json:"created_at,omitempty"`
}

// MaxPoints is the sum of question points, the ceiling for TotalScore.
func (q Quiz) MaxPoints() float64 {
	var sum float64
	for _, qq := range q.Questions {
		sum += qq.Points
	}
	return sum
}

// Attempt statuses. Finalized attempts keep how they ended; whether grading
// is still pending is carried by the Graded flag, not a separate status.
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted" // student submitted
	StatusExpired    = "expired"   // auto-submitted on time expiry
)

// Attempt is one student's single try at one quiz. At most one row exists
// per (student, quiz); the store enforces that with a unique constraint.
type Attempt struct {
	ID               string     `json:"id"`
	QuizID           string     `json:"quiz_id"`
	StudentID        string     `json:"student_id"`
	Status           string     `json:"status"`
	StartTime        time.Time  `json:"start_time"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	DurationTaken    int        `json:"duration_taken_minutes"`
	TotalScore       float64    `json:"total_score"`
	Graded           bool       `json:"graded"`
	VisibleToStudent bool       `json:"visible_to_student"`
	ShowAnswers      bool       `json:"show_answers"`
	Feedback         string     `json:"feedback,omitempty"`
}

// Finalized reports whether the attempt has been submitted (by the student
// or by time expiry).
func (a Attempt) Finalized() bool { return a.SubmittedAt != nil }

// MissingAnswer is the sentinel recorded for questions never answered.
const MissingAnswer = "Missing"

// AnswerRecord is one student's answer to one question within one attempt.
// Exactly one row exists per (attempt, question).
type AnswerRecord struct {
	ID           string    `json:"id"`
	AttemptID    string    `json:"attempt_id"`
	QuestionID   string    `json:"question_id"`
	Submitted    string    `json:"submitted_answer"`
	IsCorrect    bool      `json:"is_correct"`
	Score        float64   `json:"score"`
	AutoGradable bool      `json:"auto_gradable"`
	Graded       bool      `json:"graded"`
	Feedback     string    `json:"feedback,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
