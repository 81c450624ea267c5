package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

func insertTemplate(x execer, t model.QuestionSheetTemplate) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := x.Exec(
		`INSERT INTO question_sheet_templates (id, exam_id, name, description, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ExamID, t.Name, t.Description, t.IsDefault, time.Now().UTC(),
	)
	return t.ID, err
}

// CreateTemplate stores a question sheet template record.
func (s *Store) CreateTemplate(t model.QuestionSheetTemplate) (uuid.UUID, error) {
	return insertTemplate(s.db, t)
}

// GetDefaultTemplate returns the exam's default template, or nil if none is marked default.
func (s *Store) GetDefaultTemplate(examID uuid.UUID) (*model.QuestionSheetTemplate, error) {
	var t model.QuestionSheetTemplate
	err := s.db.QueryRow(
		`SELECT id, exam_id, name, description, is_default, created_at
		 FROM question_sheet_templates WHERE exam_id = ? AND is_default = 1
		 ORDER BY created_at LIMIT 1`, examID,
	).Scan(&t.ID, &t.ExamID, &t.Name, &t.Description, &t.IsDefault, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TemplateExists reports whether an exam already has a template with the given name.
func (s *Store) TemplateExists(examID uuid.UUID, name string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM question_sheet_templates WHERE exam_id = ? AND name = ?`, examID, name,
	).Scan(&count)
	return count > 0, err
}
