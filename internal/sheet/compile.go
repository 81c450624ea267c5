package sheet

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

// Compile builds the canonical template for an exam. Questions are sorted by
// QuestionNumber and each question's options by Order, whatever order the
// inputs arrive in. Options of non-MCQ questions are dropped.
func Compile(exam model.Exam, questions []model.Question, options []model.QuestionOption, templateName string) *model.CompiledTemplate {
	if strings.TrimSpace(templateName) == "" {
		templateName = model.DefaultTemplateName
	}

	byQuestion := make(map[uuid.UUID][]model.QuestionOption, len(questions))
	for _, o := range options {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], o)
	}

	sorted := make([]model.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QuestionNumber < sorted[j].QuestionNumber
	})

	t := &model.CompiledTemplate{
		ExamID:        exam.ID,
		ExamName:      exam.Name,
		ExamKind:      exam.Kind,
		QuestionCount: len(sorted),
		Template:      model.TemplateMetadata{Name: templateName},
		Questions:     make([]model.TemplateQuestion, 0, len(sorted)),
	}

	for _, q := range sorted {
		qType := q.Type
		if qType == "" {
			qType = model.QuestionTypeMcq
		}
		tq := model.TemplateQuestion{
			ID:             q.ID,
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Type:           qType,
			Options:        []model.TemplateOption{},
		}

		if qType == model.QuestionTypeMcq {
			tq.CorrectOption = strings.ToUpper(strings.TrimSpace(q.CorrectOption))
			opts := byQuestion[q.ID]
			sort.SliceStable(opts, func(i, j int) bool { return opts[i].Order < opts[j].Order })
			for _, o := range opts {
				tq.Options = append(tq.Options, model.TemplateOption{Key: o.Key, Text: o.Text, Order: o.Order})
			}
			tq.OptionsPerQuestion = len(tq.Options)
		} else {
			tq.Lines = q.Lines
			tq.Marks = q.Marks
			tq.BoxSize = q.BoxSize
		}

		t.Questions = append(t.Questions, tq)
	}

	return t
}
