package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidImport marks an exam definition that failed validation.
	ErrInvalidImport = errors.New("invalid exam definition")
	// ErrSheetCodeTaken is returned when an issued sheet code already exists.
	ErrSheetCodeTaken = errors.New("sheet code already issued")
)

// Validate checks an imported exam definition. Question numbers must be
// exactly 1..len(Questions) in any order. MCQ questions need at least
// two options with unique keys, exactly one of which is the correct option.
func (e ExamImport) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("exam name is required")
	}
	switch e.Kind {
	case "", ExamKindMcq, ExamKindDetailed:
	default:
		return fmt.Errorf("unknown exam kind %q", e.Kind)
	}
	if len(e.Questions) == 0 {
		return errors.New("exam has no questions")
	}
	seen := make(map[int]bool, len(e.Questions))
	for i, q := range e.Questions {
		if q.Number < 1 {
			return fmt.Errorf("question %d: number must be positive", i+1)
		}
		if q.Number > len(e.Questions) {
			return fmt.Errorf("question %d: numbers must run 1..%d without gaps", q.Number, len(e.Questions))
		}
		if seen[q.Number] {
			return fmt.Errorf("question %d: duplicate number", q.Number)
		}
		seen[q.Number] = true
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", q.Number, err)
		}
	}
	return nil
}

// Validate checks a single imported question.
func (q QuestionImport) Validate() error {
	switch q.Type {
	case "", QuestionTypeMcq:
	case QuestionTypeDetailed, QuestionTypeDiagram:
		return nil
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}

	if len(q.Options) < 2 {
		return errors.New("mcq question needs at least two options")
	}
	if len([]rune(q.CorrectOption)) != 1 {
		return fmt.Errorf("correct option %q must be a single character", q.CorrectOption)
	}
	keys := make(map[string]bool, len(q.Options))
	matches := 0
	for _, o := range q.Options {
		k := strings.ToUpper(strings.TrimSpace(o.Key))
		if k == "" {
			return errors.New("option key is empty")
		}
		if keys[k] {
			return fmt.Errorf("duplicate option key %q", o.Key)
		}
		keys[k] = true
		if strings.EqualFold(k, q.CorrectOption) {
			matches++
		}
	}
	if matches != 1 {
		return fmt.Errorf("correct option %q does not match any option key", q.CorrectOption)
	}
	return nil
}
