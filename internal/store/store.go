package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if strings.HasPrefix(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		name TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (school_id) REFERENCES schools(id)
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		student_number TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (school_id) REFERENCES schools(id),
		FOREIGN KEY (class_id) REFERENCES classes(id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		total_marks INTEGER NOT NULL DEFAULT 0,
		question_count INTEGER NOT NULL DEFAULT 0,
		exam_date DATETIME,
		kind TEXT NOT NULL DEFAULT 'Mcq',
		question_sheet_file_name TEXT NOT NULL DEFAULT '',
		answer_sheet_file_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		text TEXT NOT NULL,
		correct_option TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'Mcq',
		lines INTEGER,
		marks INTEGER,
		box_size INTEGER,
		UNIQUE (exam_id, question_number),
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS question_options (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL,
		key TEXT NOT NULL,
		text TEXT NOT NULL,
		sort_order INTEGER NOT NULL,
		UNIQUE (question_id, key),
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS question_sheet_templates (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS answer_sheets (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		student_number TEXT NOT NULL,
		sheet_code TEXT NOT NULL UNIQUE,
		generated_at DATETIME NOT NULL,
		scanned_at DATETIME,
		total_marks INTEGER,
		correct_count INTEGER,
		wrong_count INTEGER,
		blank_count INTEGER,
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (student_id) REFERENCES students(id)
	);

	CREATE TABLE IF NOT EXISTS answer_sheet_details (
		id TEXT PRIMARY KEY,
		answer_sheet_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		selected_option TEXT,
		is_correct INTEGER NOT NULL DEFAULT 0,
		marks INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (answer_sheet_id) REFERENCES answer_sheets(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	execer
	QueryRow(query string, args ...any) *sql.Row
}

func insertSchool(x execer, sc model.School) (uuid.UUID, error) {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	_, err := x.Exec(
		`INSERT INTO schools (id, name, code, address, created_at) VALUES (?, ?, ?, ?, ?)`,
		sc.ID, sc.Name, sc.Code, sc.Address, time.Now().UTC(),
	)
	return sc.ID, err
}

func getSchoolByCode(q querier, code string) (*model.School, error) {
	var sc model.School
	err := q.QueryRow(
		`SELECT id, name, code, address, created_at FROM schools WHERE code = ?`, code,
	).Scan(&sc.ID, &sc.Name, &sc.Code, &sc.Address, &sc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func insertClass(x execer, c model.Class) (uuid.UUID, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := x.Exec(
		`INSERT INTO classes (id, school_id, name, section, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.SchoolID, c.Name, c.Section, time.Now().UTC(),
	)
	return c.ID, err
}

func getClassByName(q querier, schoolID uuid.UUID, name string) (*model.Class, error) {
	var c model.Class
	err := q.QueryRow(
		`SELECT id, school_id, name, section, created_at FROM classes WHERE school_id = ? AND name = ?`,
		schoolID, name,
	).Scan(&c.ID, &c.SchoolID, &c.Name, &c.Section, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateSchool inserts a school, assigning an ID when none is set.
func (s *Store) CreateSchool(sc model.School) (uuid.UUID, error) {
	return insertSchool(s.db, sc)
}

// GetSchoolByCode returns a school by its unique code, or nil if absent.
func (s *Store) GetSchoolByCode(code string) (*model.School, error) {
	return getSchoolByCode(s.db, code)
}

// CreateClass inserts a class, assigning an ID when none is set.
func (s *Store) CreateClass(c model.Class) (uuid.UUID, error) {
	return insertClass(s.db, c)
}

// GetClassByName returns a school's class by name, or nil if absent.
func (s *Store) GetClassByName(schoolID uuid.UUID, name string) (*model.Class, error) {
	return getClassByName(s.db, schoolID, name)
}

// CreateStudent inserts a student, assigning an ID when none is set.
func (s *Store) CreateStudent(st model.Student) (uuid.UUID, error) {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	_, err := s.db.Exec(
		`INSERT INTO students (id, school_id, class_id, student_number, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.SchoolID, st.ClassID, st.StudentNumber, st.FirstName, st.LastName, time.Now().UTC(),
	)
	return st.ID, err
}

// GetStudentByNumber returns a student by student number, or nil if absent.
func (s *Store) GetStudentByNumber(studentNumber string) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRow(
		`SELECT id, school_id, class_id, student_number, first_name, last_name, created_at
		 FROM students WHERE student_number = ?`, studentNumber,
	).Scan(&st.ID, &st.SchoolID, &st.ClassID, &st.StudentNumber, &st.FirstName, &st.LastName, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

const examColumns = `id, school_id, class_id, name, subject, total_marks, question_count, exam_date, kind,
	question_sheet_file_name, answer_sheet_file_name, created_at`

func scanExam(row interface{ Scan(...any) error }) (model.Exam, error) {
	var e model.Exam
	err := row.Scan(&e.ID, &e.SchoolID, &e.ClassID, &e.Name, &e.Subject, &e.TotalMarks, &e.QuestionCount,
		&e.ExamDate, &e.Kind, &e.QuestionSheetFileName, &e.AnswerSheetFileName, &e.CreatedAt)
	return e, err
}

// CreateExam inserts an exam, assigning an ID when none is set.
func (s *Store) CreateExam(e model.Exam) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Kind == "" {
		e.Kind = model.ExamKindMcq
	}
	_, err := s.db.Exec(
		`INSERT INTO exams (id, school_id, class_id, name, subject, total_marks, question_count, exam_date, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SchoolID, e.ClassID, e.Name, e.Subject, e.TotalMarks, e.QuestionCount, e.ExamDate, e.Kind, time.Now().UTC(),
	)
	return e.ID, err
}

// GetExam returns an exam by ID, or nil if absent.
func (s *Store) GetExam(id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(s.db.QueryRow(`SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams() ([]model.Exam, error) {
	rows, err := s.db.Query(`SELECT ` + examColumns + ` FROM exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// UpdateExam overwrites the mutable fields of an exam.
func (s *Store) UpdateExam(e model.Exam) error {
	_, err := s.db.Exec(
		`UPDATE exams SET name = ?, subject = ?, total_marks = ?, question_count = ?, exam_date = ?, kind = ?,
		 question_sheet_file_name = ?, answer_sheet_file_name = ? WHERE id = ?`,
		e.Name, e.Subject, e.TotalMarks, e.QuestionCount, e.ExamDate, e.Kind,
		e.QuestionSheetFileName, e.AnswerSheetFileName, e.ID,
	)
	return err
}

// DeleteExam removes an exam together with its questions and templates.
func (s *Store) DeleteExam(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM exams WHERE id = ?`, id)
	return err
}
