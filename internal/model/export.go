package model

import "time"

// ExamImport is the JSON layout accepted by the import command.
type ExamImport struct {
	ID           string           `json:"id,omitempty"`
	Name         string           `json:"name"`
	Subject      string           `json:"subject"`
	Kind         ExamKind         `json:"kind"`
	TotalMarks   int              `json:"total_marks"`
	ExamDate     string           `json:"exam_date,omitempty"`
	TemplateName string           `json:"template_name,omitempty"`
	SchoolCode   string           `json:"school_code"`
	ClassName    string           `json:"class_name"`
	Questions    []QuestionImport `json:"questions"`
}

// QuestionImport is one question of an ExamImport.
type QuestionImport struct {
	Number        int            `json:"number"`
	Text          string         `json:"text"`
	Type          QuestionType   `json:"type,omitempty"`
	CorrectOption string         `json:"correct_option"`
	Options       []OptionImport `json:"options"`
	Lines         *int           `json:"lines,omitempty"`
	Marks         *int           `json:"marks,omitempty"`
	BoxSize       *int           `json:"box_size,omitempty"`
}

// OptionImport is one option of a QuestionImport. Options are ordered as listed.
type OptionImport struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// EvaluationExport is the top-level JSON structure for result export.
type EvaluationExport struct {
	ExamID     string        `json:"exam_id"`
	ExamName   string        `json:"exam_name"`
	Subject    string        `json:"subject"`
	TotalMarks int           `json:"total_marks"`
	Sheets     []SheetResult `json:"sheets"`
}

// SheetResult holds one evaluated answer sheet for export.
type SheetResult struct {
	SheetCode     string           `json:"sheet_code"`
	StudentNumber string           `json:"student_number"`
	GeneratedAt   time.Time        `json:"generated_at"`
	ScannedAt     *time.Time       `json:"scanned_at,omitempty"`
	CorrectCount  int              `json:"correct_count"`
	WrongCount    int              `json:"wrong_count"`
	BlankCount    int              `json:"blank_count"`
	Answers       []QuestionResult `json:"answers"`
}

// QuestionResult holds one detail row for export.
type QuestionResult struct {
	QuestionNumber int     `json:"question_number"`
	SelectedOption *string `json:"selected_option"`
	IsCorrect      bool    `json:"is_correct"`
	Marks          int     `json:"marks"`
}
