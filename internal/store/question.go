package store

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

const questionColumns = `id, exam_id, question_number, text, correct_option, type, lines, marks, box_size`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	err := row.Scan(&q.ID, &q.ExamID, &q.QuestionNumber, &q.Text, &q.CorrectOption, &q.Type, &q.Lines, &q.Marks, &q.BoxSize)
	return q, err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertQuestion(x execer, q model.Question) (uuid.UUID, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Type == "" {
		q.Type = model.QuestionTypeMcq
	}
	_, err := x.Exec(
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ExamID, q.QuestionNumber, q.Text, q.CorrectOption, q.Type, q.Lines, q.Marks, q.BoxSize,
	)
	return q.ID, err
}

func insertOption(x execer, o model.QuestionOption) (uuid.UUID, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := x.Exec(
		`INSERT INTO question_options (id, question_id, key, text, sort_order) VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.QuestionID, o.Key, o.Text, o.Order,
	)
	return o.ID, err
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (uuid.UUID, error) {
	return insertQuestion(s.db, q)
}

// InsertOptions stores options for a question in one transaction.
func (s *Store) InsertOptions(questionID uuid.UUID, options []model.QuestionOption) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range options {
		o.QuestionID = questionID
		if _, err := insertOption(tx, o); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id uuid.UUID) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// ListQuestionsByExam returns an exam's questions ordered by question number.
func (s *Store) ListQuestionsByExam(examID uuid.UUID) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY question_number`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListOptionsByExam returns the options of every question of an exam,
// ordered by question number and then by option order.
func (s *Store) ListOptionsByExam(examID uuid.UUID) ([]model.QuestionOption, error) {
	rows, err := s.db.Query(
		`SELECT o.id, o.question_id, o.key, o.text, o.sort_order
		 FROM question_options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.exam_id = ?
		 ORDER BY q.question_number, o.sort_order`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var options []model.QuestionOption
	for rows.Next() {
		var o model.QuestionOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Key, &o.Text, &o.Order); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// DeleteQuestion removes a question and its options.
func (s *Store) DeleteQuestion(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	return err
}

// QuestionCount returns the number of questions stored for an exam.
func (s *Store) QuestionCount(examID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE exam_id = ?`, examID).Scan(&count)
	return count, err
}
