package sheet

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

func intPtr(n int) *int { return &n }

// buildExam returns n MCQ questions with k options each, inserted in reverse
// question order and with options in reverse Order.
func buildExam(n, k int) (model.Exam, []model.Question, []model.QuestionOption) {
	exam := model.Exam{ID: uuid.New(), Name: "Unit Exam", QuestionCount: n, TotalMarks: n, Kind: model.ExamKindMcq}
	var questions []model.Question
	var options []model.QuestionOption
	for i := n; i >= 1; i-- {
		q := model.Question{
			ID:             uuid.New(),
			ExamID:         exam.ID,
			QuestionNumber: i,
			Text:           fmt.Sprintf("Q%d", i),
			CorrectOption:  "a",
			Type:           model.QuestionTypeMcq,
		}
		questions = append(questions, q)
		for j := k; j >= 1; j-- {
			key := string(rune('A' + j - 1))
			options = append(options, model.QuestionOption{ID: uuid.New(), QuestionID: q.ID, Key: key, Text: "opt " + key, Order: j})
		}
	}
	return exam, questions, options
}

func TestCompileOrdering(t *testing.T) {
	tests := []struct{ n, k int }{
		{1, 2},
		{5, 4},
		{10, 4},
		{30, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.n, tt.k), func(t *testing.T) {
			exam, qs, opts := buildExam(tt.n, tt.k)
			c := Compile(exam, qs, opts, "")

			if c.QuestionCount != tt.n || len(c.Questions) != tt.n {
				t.Fatalf("expected %d questions, got count=%d len=%d", tt.n, c.QuestionCount, len(c.Questions))
			}
			for i, q := range c.Questions {
				if q.QuestionNumber != i+1 {
					t.Fatalf("question %d has number %d", i, q.QuestionNumber)
				}
				if q.OptionsPerQuestion != tt.k || len(q.Options) != tt.k {
					t.Fatalf("q%d: expected %d options, got %d/%d", q.QuestionNumber, tt.k, q.OptionsPerQuestion, len(q.Options))
				}
				for j := 1; j < len(q.Options); j++ {
					if q.Options[j-1].Order >= q.Options[j].Order {
						t.Fatalf("q%d: options not ascending: %+v", q.QuestionNumber, q.Options)
					}
				}
				if q.CorrectOption != "A" {
					t.Errorf("q%d: expected correct option A, got %q", q.QuestionNumber, q.CorrectOption)
				}
			}
		})
	}
}

func TestCompileTemplateName(t *testing.T) {
	exam, qs, opts := buildExam(2, 2)
	if got := Compile(exam, qs, opts, "  ").Template.Name; got != model.DefaultTemplateName {
		t.Errorf("expected fallback %q, got %q", model.DefaultTemplateName, got)
	}
	if got := Compile(exam, qs, opts, "OMR").Template.Name; got != "OMR" {
		t.Errorf("expected OMR, got %q", got)
	}
}

func TestCompileNonMcq(t *testing.T) {
	exam := model.Exam{ID: uuid.New(), Name: "Essay", Kind: model.ExamKindDetailed}
	q := model.Question{
		ID:             uuid.New(),
		QuestionNumber: 1,
		Text:           "Draw a cell",
		CorrectOption:  "A",
		Type:           model.QuestionTypeDiagram,
		BoxSize:        intPtr(200),
		Marks:          intPtr(5),
	}
	opts := []model.QuestionOption{{QuestionID: q.ID, Key: "A", Text: "stray", Order: 1}}

	c := Compile(exam, []model.Question{q}, opts, "")
	got := c.Questions[0]
	if got.OptionsPerQuestion != 0 || len(got.Options) != 0 {
		t.Errorf("expected no options for diagram question, got %d", len(got.Options))
	}
	if got.CorrectOption != "" {
		t.Errorf("expected empty correct option, got %q", got.CorrectOption)
	}
	if got.BoxSize == nil || *got.BoxSize != 200 {
		t.Errorf("expected box size 200, got %v", got.BoxSize)
	}
}

func TestBuildPayload(t *testing.T) {
	exam, qs, opts := buildExam(2, 4)
	c := Compile(exam, qs, opts, "OMR")

	raw, err := BuildPayload(c)
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	s := string(raw)

	// Options keep Order sequence even though they were loaded reversed.
	want := `"options":{"A":"opt A","B":"opt B","C":"opt C","D":"opt D"}`
	if !strings.Contains(s, want) {
		t.Errorf("payload missing ordered options %s:\n%s", want, s)
	}
	if strings.Index(s, `"questionNumber":1`) > strings.Index(s, `"questionNumber":2`) {
		t.Errorf("questions out of order:\n%s", s)
	}

	var decoded struct {
		ExamID        string `json:"examId"`
		ExamName      string `json:"examName"`
		QuestionCount int    `json:"questionCount"`
		Template      struct {
			Name string `json:"name"`
		} `json:"template"`
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.ExamID != exam.ID.String() || decoded.ExamName != "Unit Exam" || decoded.QuestionCount != 2 {
		t.Errorf("unexpected header: %+v", decoded)
	}
	if decoded.Template.Name != "OMR" {
		t.Errorf("expected template name OMR, got %q", decoded.Template.Name)
	}
	q := decoded.Questions[0]
	if q["correct"] != "A" || q["type"] != "mcq" {
		t.Errorf("unexpected question fields: %v", q)
	}
	if _, ok := q["lines"]; ok {
		t.Errorf("lines should be omitted for MCQ questions")
	}
}

func TestOrderedOptionsEmpty(t *testing.T) {
	b, err := json.Marshal(OrderedOptions(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("expected {}, got %s", b)
	}
}
