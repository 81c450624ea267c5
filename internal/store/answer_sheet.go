package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ideageek/examiner/internal/model"
)

const answerSheetColumns = `id, exam_id, student_id, student_number, sheet_code, generated_at, scanned_at,
	total_marks, correct_count, wrong_count, blank_count`

func scanAnswerSheet(row interface{ Scan(...any) error }) (model.AnswerSheet, error) {
	var a model.AnswerSheet
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StudentNumber, &a.SheetCode, &a.GeneratedAt, &a.ScannedAt,
		&a.TotalMarks, &a.CorrectCount, &a.WrongCount, &a.BlankCount)
	return a, err
}

// InsertAnswerSheet stores a newly issued sheet. A sheet code that is
// already taken yields model.ErrSheetCodeTaken.
func (s *Store) InsertAnswerSheet(a model.AnswerSheet) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.Exec(
		`INSERT INTO answer_sheets (id, exam_id, student_id, student_number, sheet_code, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.ExamID, a.StudentID, a.StudentNumber, a.SheetCode, a.GeneratedAt,
	)
	if isUniqueViolation(err) {
		return uuid.Nil, fmt.Errorf("%w: %s", model.ErrSheetCodeTaken, a.SheetCode)
	}
	return a.ID, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// GetAnswerSheetByCode returns the sheet issued under sheetCode to studentNumber, or nil.
func (s *Store) GetAnswerSheetByCode(sheetCode, studentNumber string) (*model.AnswerSheet, error) {
	a, err := scanAnswerSheet(s.db.QueryRow(
		`SELECT `+answerSheetColumns+` FROM answer_sheets WHERE sheet_code = ? AND student_number = ?`,
		sheetCode, studentNumber,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnswerSheetsByExam returns every sheet issued for an exam, oldest first.
func (s *Store) ListAnswerSheetsByExam(examID uuid.UUID) ([]model.AnswerSheet, error) {
	rows, err := s.db.Query(
		`SELECT `+answerSheetColumns+` FROM answer_sheets WHERE exam_id = ? ORDER BY generated_at, sheet_code`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sheets []model.AnswerSheet
	for rows.Next() {
		a, err := scanAnswerSheet(rows)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, a)
	}
	return sheets, rows.Err()
}

// GetAnswerSheetDetails returns a sheet's detail rows ordered by question number.
func (s *Store) GetAnswerSheetDetails(answerSheetID uuid.UUID) ([]model.AnswerSheetDetail, error) {
	rows, err := s.db.Query(
		`SELECT id, answer_sheet_id, question_id, question_number, selected_option, is_correct, marks
		 FROM answer_sheet_details WHERE answer_sheet_id = ? ORDER BY question_number`, answerSheetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []model.AnswerSheetDetail
	for rows.Next() {
		var d model.AnswerSheetDetail
		if err := rows.Scan(&d.ID, &d.AnswerSheetID, &d.QuestionID, &d.QuestionNumber, &d.SelectedOption, &d.IsCorrect, &d.Marks); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// SaveEvaluation replaces a sheet's detail rows and summary counters in one
// transaction. Prior details are deleted before the new set is inserted, so
// repeated evaluations never accumulate. An unknown sheet yields sql.ErrNoRows.
func (s *Store) SaveEvaluation(answerSheetID uuid.UUID, details []model.AnswerSheetDetail, sum model.EvaluationSummary, scannedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE answer_sheets SET total_marks = ?, correct_count = ?, wrong_count = ?, blank_count = ?, scanned_at = ?
		 WHERE id = ?`,
		sum.TotalMarks, sum.CorrectCount, sum.WrongCount, sum.BlankCount, scannedAt, answerSheetID,
	)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.Exec(`DELETE FROM answer_sheet_details WHERE answer_sheet_id = ?`, answerSheetID); err != nil {
		return fmt.Errorf("delete details: %w", err)
	}

	for _, d := range details {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		_, err := tx.Exec(
			`INSERT INTO answer_sheet_details (id, answer_sheet_id, question_id, question_number, selected_option, is_correct, marks)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, answerSheetID, d.QuestionID, d.QuestionNumber, d.SelectedOption, d.IsCorrect, d.Marks,
		)
		if err != nil {
			return fmt.Errorf("insert detail for question %d: %w", d.QuestionNumber, err)
		}
	}

	return tx.Commit()
}
