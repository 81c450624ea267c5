package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

// DemoExamID identifies the seeded demo exam.
var DemoExamID = uuid.MustParse("a9e7dc13-c9f7-44b0-9d13-148771ab0b1b")

const (
	demoSchoolCode    = "DEMO-SCH"
	demoClassName     = "Grade 10"
	demoStudentNumber = "STU-0001"
	demoTemplateName  = "Default OMR Template"
	demoQuestionCount = 10
)

// SeedDemo creates a demo school, class, student, ten-question MCQ exam and
// default template. Each piece is skipped when it already exists.
func (s *Store) SeedDemo() (uuid.UUID, error) {
	schoolID, classID, err := ensureSchoolAndClass(s.db, demoSchoolCode, demoClassName)
	if err != nil {
		return uuid.Nil, err
	}

	student, err := s.GetStudentByNumber(demoStudentNumber)
	if err != nil {
		return uuid.Nil, err
	}
	if student == nil {
		_, err := s.CreateStudent(model.Student{
			SchoolID:      schoolID,
			ClassID:       classID,
			StudentNumber: demoStudentNumber,
			FirstName:     "Demo",
			LastName:      "Student",
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("create demo student: %w", err)
		}
		slog.Info("seeded demo student", "student_number", demoStudentNumber)
	}

	exam, err := s.GetExam(DemoExamID)
	if err != nil {
		return uuid.Nil, err
	}
	if exam == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		_, err := s.CreateExam(model.Exam{
			ID:            DemoExamID,
			SchoolID:      schoolID,
			ClassID:       classID,
			Name:          "Demo MCQ Test",
			Subject:       "Mathematics",
			TotalMarks:    demoQuestionCount,
			QuestionCount: demoQuestionCount,
			ExamDate:      &today,
			Kind:          model.ExamKindMcq,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("create demo exam: %w", err)
		}
		slog.Info("seeded demo exam", "exam_id", DemoExamID)
	}

	if err := s.seedDemoQuestions(); err != nil {
		return uuid.Nil, err
	}

	exists, err := s.TemplateExists(DemoExamID, demoTemplateName)
	if err != nil {
		return uuid.Nil, err
	}
	if !exists {
		_, err := s.CreateTemplate(model.QuestionSheetTemplate{
			ExamID:      DemoExamID,
			Name:        demoTemplateName,
			Description: "Template used for demo 10-question sheet.",
			IsDefault:   true,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("create demo template: %w", err)
		}
	}

	return DemoExamID, nil
}

func (s *Store) seedDemoQuestions() error {
	count, err := s.QuestionCount(DemoExamID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for n := 1; n <= demoQuestionCount; n++ {
		correct := "A"
		if n%2 == 0 {
			correct = "B"
		}
		qID, err := insertQuestion(tx, model.Question{
			ExamID:         DemoExamID,
			QuestionNumber: n,
			Text:           fmt.Sprintf("Question %d", n),
			CorrectOption:  correct,
			Type:           model.QuestionTypeMcq,
		})
		if err != nil {
			return fmt.Errorf("insert demo question %d: %w", n, err)
		}
		for i, key := range []string{"A", "B", "C", "D"} {
			_, err := insertOption(tx, model.QuestionOption{
				QuestionID: qID,
				Key:        key,
				Text:       "Option " + key,
				Order:      i + 1,
			})
			if err != nil {
				return fmt.Errorf("insert demo option %s: %w", key, err)
			}
		}
	}

	return tx.Commit()
}
