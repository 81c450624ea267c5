package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

// ExportEvaluations builds export-ready results for every evaluated sheet of an exam.
// Sheets that were issued but never evaluated are skipped. It returns nil if
// the exam does not exist.
func (s *Store) ExportEvaluations(examID uuid.UUID) (*model.EvaluationExport, error) {
	exam, err := s.GetExam(examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, nil
	}

	sheets, err := s.ListAnswerSheetsByExam(examID)
	if err != nil {
		return nil, fmt.Errorf("list answer sheets: %w", err)
	}

	export := &model.EvaluationExport{
		ExamID:     exam.ID.String(),
		ExamName:   exam.Name,
		Subject:    exam.Subject,
		TotalMarks: exam.TotalMarks,
		Sheets:     []model.SheetResult{},
	}
	for _, sh := range sheets {
		if sh.ScannedAt == nil {
			continue
		}
		details, err := s.GetAnswerSheetDetails(sh.ID)
		if err != nil {
			return nil, fmt.Errorf("get details for %s: %w", sh.SheetCode, err)
		}

		var answers []model.QuestionResult
		for _, d := range details {
			answers = append(answers, model.QuestionResult{
				QuestionNumber: d.QuestionNumber,
				SelectedOption: d.SelectedOption,
				IsCorrect:      d.IsCorrect,
				Marks:          d.Marks,
			})
		}

		export.Sheets = append(export.Sheets, model.SheetResult{
			SheetCode:     sh.SheetCode,
			StudentNumber: sh.StudentNumber,
			GeneratedAt:   sh.GeneratedAt,
			ScannedAt:     sh.ScannedAt,
			CorrectCount:  deref(sh.CorrectCount),
			WrongCount:    deref(sh.WrongCount),
			BlankCount:    deref(sh.BlankCount),
			Answers:       answers,
		})
	}

	return export, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
