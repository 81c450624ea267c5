package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

// ImportExam stores a validated exam definition with its questions, options
// and optional default template. The school and class are created when missing.
func (s *Store) ImportExam(ei model.ExamImport) (uuid.UUID, error) {
	if err := ei.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", model.ErrInvalidImport, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	schoolID, classID, err := ensureSchoolAndClass(tx, ei.SchoolCode, ei.ClassName)
	if err != nil {
		return uuid.Nil, err
	}

	exam := model.Exam{
		SchoolID:      schoolID,
		ClassID:       classID,
		Name:          ei.Name,
		Subject:       ei.Subject,
		TotalMarks:    ei.TotalMarks,
		QuestionCount: len(ei.Questions),
		Kind:          ei.Kind,
	}
	if exam.Kind == "" {
		exam.Kind = model.ExamKindMcq
	}
	if ei.ID != "" {
		if exam.ID, err = uuid.Parse(ei.ID); err != nil {
			return uuid.Nil, fmt.Errorf("%w: parse exam id: %v", model.ErrInvalidImport, err)
		}
	} else {
		exam.ID = uuid.New()
	}
	if ei.ExamDate != "" {
		d, err := time.Parse(time.DateOnly, ei.ExamDate)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: parse exam date: %v", model.ErrInvalidImport, err)
		}
		exam.ExamDate = &d
	}
	if exam.TotalMarks == 0 {
		exam.TotalMarks = exam.QuestionCount
	}

	_, err = tx.Exec(
		`INSERT INTO exams (id, school_id, class_id, name, subject, total_marks, question_count, exam_date, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exam.ID, exam.SchoolID, exam.ClassID, exam.Name, exam.Subject, exam.TotalMarks, exam.QuestionCount,
		exam.ExamDate, exam.Kind, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert exam: %w", err)
	}

	for _, qi := range ei.Questions {
		qType := qi.Type
		if qType == "" {
			qType = model.QuestionTypeMcq
		}
		qID, err := insertQuestion(tx, model.Question{
			ExamID:         exam.ID,
			QuestionNumber: qi.Number,
			Text:           qi.Text,
			CorrectOption:  strings.ToUpper(strings.TrimSpace(qi.CorrectOption)),
			Type:           qType,
			Lines:          qi.Lines,
			Marks:          qi.Marks,
			BoxSize:        qi.BoxSize,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert question %d: %w", qi.Number, err)
		}
		for i, oi := range qi.Options {
			_, err := insertOption(tx, model.QuestionOption{
				QuestionID: qID,
				Key:        strings.TrimSpace(oi.Key),
				Text:       oi.Text,
				Order:      i + 1,
			})
			if err != nil {
				return uuid.Nil, fmt.Errorf("insert option %q of question %d: %w", oi.Key, qi.Number, err)
			}
		}
	}

	if ei.TemplateName != "" {
		_, err := insertTemplate(tx, model.QuestionSheetTemplate{
			ExamID:    exam.ID,
			Name:      ei.TemplateName,
			IsDefault: true,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert template: %w", err)
		}
	}

	return exam.ID, tx.Commit()
}

// ensureSchoolAndClass looks up or creates a school by code and its class by name.
func ensureSchoolAndClass(q querier, schoolCode, className string) (uuid.UUID, uuid.UUID, error) {
	if schoolCode == "" {
		schoolCode = "DEFAULT"
	}
	if className == "" {
		className = "Default"
	}

	school, err := getSchoolByCode(q, schoolCode)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	var schoolID uuid.UUID
	if school != nil {
		schoolID = school.ID
	} else if schoolID, err = insertSchool(q, model.School{Name: schoolCode, Code: schoolCode}); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("create school: %w", err)
	}

	class, err := getClassByName(q, schoolID, className)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if class != nil {
		return schoolID, class.ID, nil
	}
	classID, err := insertClass(q, model.Class{SchoolID: schoolID, Name: className})
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("create class: %w", err)
	}
	return schoolID, classID, nil
}
