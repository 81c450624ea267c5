package sheet

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

// OrderedOptions marshals as a JSON object whose keys keep slice order.
// The engine places bubbles and labels in key order.
type OrderedOptions []model.TemplateOption

func (o OrderedOptions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(opt.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(opt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type payload struct {
	ExamID        uuid.UUID              `json:"examId"`
	ExamName      string                 `json:"examName"`
	QuestionCount int                    `json:"questionCount"`
	Template      model.TemplateMetadata `json:"template"`
	Questions     []payloadQuestion      `json:"questions"`
}

type payloadQuestion struct {
	ID             uuid.UUID      `json:"id"`
	QuestionNumber int            `json:"questionNumber"`
	Text           string         `json:"text"`
	Options        OrderedOptions `json:"options"`
	Correct        string         `json:"correct"`
	Type           string         `json:"type"`
	Lines          *int           `json:"lines,omitempty"`
	Marks          *int           `json:"marks,omitempty"`
	BoxSize        *int           `json:"boxSize,omitempty"`
}

// BuildPayload serializes a compiled template into the engine's input document.
func BuildPayload(t *model.CompiledTemplate) ([]byte, error) {
	p := payload{
		ExamID:        t.ExamID,
		ExamName:      t.ExamName,
		QuestionCount: t.QuestionCount,
		Template:      t.Template,
		Questions:     make([]payloadQuestion, 0, len(t.Questions)),
	}
	for _, q := range t.Questions {
		p.Questions = append(p.Questions, payloadQuestion{
			ID:             q.ID,
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Options:        OrderedOptions(q.Options),
			Correct:        q.CorrectOption,
			Type:           strings.ToLower(string(q.Type)),
			Lines:          q.Lines,
			Marks:          q.Marks,
			BoxSize:        q.BoxSize,
		})
	}
	return json.Marshal(p)
}
