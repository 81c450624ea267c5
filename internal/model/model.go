package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRole represents a user's access level.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleTeacher UserRole = "teacher"
	UserRoleStudent UserRole = "student"
)

// User represents an API user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an issued bearer token.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// ExamKind distinguishes bubble sheets from written-answer sheets.
type ExamKind string

const (
	ExamKindMcq      ExamKind = "Mcq"
	ExamKindDetailed ExamKind = "Detailed"
)

// QuestionType is the layout a question takes on a sheet.
type QuestionType string

const (
	QuestionTypeMcq      QuestionType = "Mcq"
	QuestionTypeDetailed QuestionType = "Detailed"
	QuestionTypeDiagram  QuestionType = "Diagram"
)

// School owns classes and students.
type School struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Class belongs to a school.
type Class struct {
	ID        uuid.UUID `json:"id"`
	SchoolID  uuid.UUID `json:"school_id"`
	Name      string    `json:"name"`
	Section   string    `json:"section,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is looked up by StudentNumber when a sheet is issued.
type Student struct {
	ID            uuid.UUID `json:"id"`
	SchoolID      uuid.UUID `json:"school_id"`
	ClassID       uuid.UUID `json:"class_id"`
	StudentNumber string    `json:"student_number"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DisplayName joins the non-blank name parts.
func (s Student) DisplayName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Exam is the root of the question hierarchy.
type Exam struct {
	ID                    uuid.UUID  `json:"id"`
	SchoolID              uuid.UUID  `json:"school_id"`
	ClassID               uuid.UUID  `json:"class_id"`
	Name                  string     `json:"name"`
	Subject               string     `json:"subject"`
	TotalMarks            int        `json:"total_marks"`
	QuestionCount         int        `json:"question_count"`
	ExamDate              *time.Time `json:"exam_date,omitempty"`
	Kind                  ExamKind   `json:"kind"`
	QuestionSheetFileName string     `json:"question_sheet_file_name,omitempty"`
	AnswerSheetFileName   string     `json:"answer_sheet_file_name,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Question belongs to exactly one exam. CorrectOption is a single-character
// key for MCQ and true/false questions and is ignored for other types.
type Question struct {
	ID             uuid.UUID    `json:"id"`
	ExamID         uuid.UUID    `json:"exam_id"`
	QuestionNumber int          `json:"question_number"`
	Text           string       `json:"text"`
	CorrectOption  string       `json:"correct_option"`
	Type           QuestionType `json:"type"`
	Lines          *int         `json:"lines,omitempty"`
	Marks          *int         `json:"marks,omitempty"`
	BoxSize        *int         `json:"box_size,omitempty"`
}

// QuestionOption is one labeled choice of a question.
type QuestionOption struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Key        string    `json:"key"`
	Text       string    `json:"text"`
	Order      int       `json:"order"`
}

// QuestionSheetTemplate only contributes a display name to compiled templates.
type QuestionSheetTemplate struct {
	ID          uuid.UUID `json:"id"`
	ExamID      uuid.UUID `json:"exam_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnswerSheet is one issued sheet for an (exam, student) pair.
// The summary counters stay nil until the sheet has been evaluated.
type AnswerSheet struct {
	ID            uuid.UUID  `json:"id"`
	ExamID        uuid.UUID  `json:"exam_id"`
	StudentID     uuid.UUID  `json:"student_id"`
	StudentNumber string     `json:"student_number"`
	SheetCode     string     `json:"sheet_code"`
	GeneratedAt   time.Time  `json:"generated_at"`
	ScannedAt     *time.Time `json:"scanned_at,omitempty"`
	TotalMarks    *int       `json:"total_marks,omitempty"`
	CorrectCount  *int       `json:"correct_count,omitempty"`
	WrongCount    *int       `json:"wrong_count,omitempty"`
	BlankCount    *int       `json:"blank_count,omitempty"`
}

// AnswerSheetDetail is the per-question outcome of one evaluation.
// A nil SelectedOption means the question was left blank.
type AnswerSheetDetail struct {
	ID             uuid.UUID `json:"id"`
	AnswerSheetID  uuid.UUID `json:"answer_sheet_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	QuestionNumber int       `json:"question_number"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
	Marks          int       `json:"marks"`
}

// EvaluationSummary holds the counters written onto an AnswerSheet.
type EvaluationSummary struct {
	TotalMarks   int
	CorrectCount int
	WrongCount   int
	BlankCount   int
}

// SheetConfig holds runtime settings for sheet generation, set via CLI flags.
type SheetConfig struct {
	DocumentsFolder    string // where engine images and uploaded scans are written
	DocumentsURLPrefix string // may be absolute, a path fragment, or empty
}
