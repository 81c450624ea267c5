package model

import "github.com/google/uuid"

// DefaultTemplateName is used when an exam has no default template record.
const DefaultTemplateName = "Default"

// CompiledTemplate is the canonical per-exam layout shared by template
// display, sheet image generation and score checking.
type CompiledTemplate struct {
	ExamID        uuid.UUID          `json:"examId"`
	ExamName      string             `json:"examName"`
	ExamKind      ExamKind           `json:"examKind"`
	QuestionCount int                `json:"questionCount"`
	Template      TemplateMetadata   `json:"template"`
	Questions     []TemplateQuestion `json:"questions"`
}

// TemplateMetadata describes the template the sheet is rendered from.
type TemplateMetadata struct {
	Name string `json:"name"`
}

// TemplateQuestion is one question of a compiled template, options sorted by Order.
type TemplateQuestion struct {
	ID                 uuid.UUID        `json:"id"`
	QuestionNumber     int              `json:"questionNumber"`
	Text               string           `json:"text"`
	Type               QuestionType     `json:"type"`
	CorrectOption      string           `json:"correctOption"`
	OptionsPerQuestion int              `json:"optionsPerQuestion"`
	Options            []TemplateOption `json:"options"`
	Lines              *int             `json:"lines,omitempty"`
	Marks              *int             `json:"marks,omitempty"`
	BoxSize            *int             `json:"boxSize,omitempty"`
}

// TemplateOption is a labeled choice inside a compiled template.
type TemplateOption struct {
	Key   string `json:"key"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// SheetGenerationResponse reports where a generated sheet image was written.
type SheetGenerationResponse struct {
	ExamID   uuid.UUID `json:"examId"`
	ExamName string    `json:"examName"`
	FileName string    `json:"fileName"`
	URL      string    `json:"url"`
}

// ScoreDetail is one row of an engine scoring result.
type ScoreDetail struct {
	QuestionNumber int    `json:"questionNumber"`
	Correct        string `json:"correct"`
	Detected       string `json:"detected"`
	IsCorrect      bool   `json:"isCorrect"`
}

// ScoreResponse is the advisory result of scoring an uploaded scan.
type ScoreResponse struct {
	ExamID          string        `json:"examId,omitempty"`
	ExamName        string        `json:"examName,omitempty"`
	StudentID       string        `json:"studentId,omitempty"`
	QuestionCount   int           `json:"questionCount"`
	CorrectCount    int           `json:"correctCount"`
	WrongCount      int           `json:"wrongCount"`
	EvaluationError string        `json:"evaluationError,omitempty"`
	Details         []ScoreDetail `json:"details"`
	ScannedFileName string        `json:"scannedFileName,omitempty"`
}

// QRPayload is the plain identifier blob printed on an issued sheet.
type QRPayload struct {
	SheetCode     string    `json:"SheetCode"`
	StudentNumber string    `json:"StudentNumber"`
	ExamID        uuid.UUID `json:"ExamId"`
	QuestionCount int       `json:"QuestionCount"`
}

// IssuedSheetResponse describes a newly issued answer sheet.
type IssuedSheetResponse struct {
	SheetCode     string                `json:"sheetCode"`
	StudentNumber string                `json:"studentNumber"`
	StudentName   string                `json:"studentName"`
	ExamName      string                `json:"examName"`
	Base64QRPng   string                `json:"base64QrPng"`
	QRPayload     string                `json:"qrPayload"`
	Questions     []IssuedSheetQuestion `json:"questions"`
}

// IssuedSheetQuestion is a question as printed on an issued sheet.
type IssuedSheetQuestion struct {
	QuestionNumber int              `json:"questionNumber"`
	Text           string           `json:"text"`
	Options        []TemplateOption `json:"options"`
}

// EvaluationRequest carries a digitally submitted answer set.
// Answers maps question numbers to the selected option letter.
type EvaluationRequest struct {
	SheetCode     string          `json:"sheetCode"`
	StudentNumber string          `json:"studentNumber"`
	Answers       map[int]*string `json:"answers"`
}

// EvaluationResponse summarizes a persisted evaluation.
type EvaluationResponse struct {
	SheetCode     string             `json:"sheetCode"`
	StudentNumber string             `json:"studentNumber"`
	ExamName      string             `json:"examName"`
	TotalMarks    int                `json:"totalMarks"`
	ObtainedMarks int                `json:"obtainedMarks"`
	CorrectCount  int                `json:"correctCount"`
	WrongCount    int                `json:"wrongCount"`
	BlankCount    int                `json:"blankCount"`
	Details       []EvaluationDetail `json:"details"`
}

// EvaluationDetail is one question of an EvaluationResponse.
type EvaluationDetail struct {
	QuestionNumber int     `json:"questionNumber"`
	SelectedOption *string `json:"selectedOption"`
	CorrectOption  string  `json:"correctOption"`
	IsCorrect      bool    `json:"isCorrect"`
	Marks          int     `json:"marks"`
}
