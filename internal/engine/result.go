package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ideageek/examiner/internal/model"
)

// Candidate field names, probed in order. The engine has used both spellings.
var (
	imageFields         = []string{"image_base64", "imageBase64"}
	examIDFields        = []string{"exam_id", "examId"}
	examNameFields      = []string{"exam_name", "examName"}
	studentIDFields     = []string{"student_id", "studentId"}
	questionCountFields = []string{"question_count", "questionCount"}
	evalErrorFields     = []string{"evaluation_error", "evaluationError"}
	evaluationFields    = []string{"evaluation"}
	correctCountFields  = []string{"correct_count", "correctCount"}
	wrongCountFields    = []string{"wrong_count", "wrongCount"}
	detailsFields       = []string{"details"}
	questionNumFields   = []string{"question_number", "questionNumber", "question_id", "questionId"}
	correctFields       = []string{"correct"}
	detectedFields      = []string{"detected"}
	isCorrectFields     = []string{"is_correct", "isCorrect"}
)

type object map[string]json.RawMessage

func decodeObject(raw []byte) (object, bool) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// probe returns the first candidate field that is present and not null.
func (o object) probe(names []string) (json.RawMessage, bool) {
	for _, n := range names {
		v, ok := o[n]
		if !ok {
			continue
		}
		if t := bytes.TrimSpace(v); len(t) == 0 || bytes.Equal(t, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (o object) str(names []string) string {
	v, ok := o.probe(names)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// integer returns the first candidate that holds a number or a numeric string.
func (o object) integer(names []string) (int, bool) {
	for _, name := range names {
		v, ok := o.probe([]string{name})
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return int(f), true
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func (o object) boolean(names []string) bool {
	v, ok := o.probe(names)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		b, _ = strconv.ParseBool(strings.TrimSpace(s))
		return b
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f != 0
	}
	return false
}

func (o object) child(names []string) object {
	v, ok := o.probe(names)
	if !ok {
		return nil
	}
	obj, _ := decodeObject(v)
	return obj
}

// ParseImage extracts the decoded image bytes from an image-producing response.
func ParseImage(raw []byte) ([]byte, error) {
	obj, ok := decodeObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: response is not a JSON object", ErrMalformedResponse)
	}
	encoded := strings.TrimSpace(obj.str(imageFields))
	if encoded == "" {
		return nil, fmt.Errorf("%w: missing image field (tried %s)", ErrMalformedResponse, strings.Join(imageFields, ", "))
	}
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrMalformedResponse, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMalformedResponse)
	}
	return img, nil
}

// ParseScore maps a scoreCheck response. Every field is optional. Only a
// document that is not a JSON object is rejected.
func ParseScore(raw []byte) (model.ScoreResponse, error) {
	obj, ok := decodeObject(raw)
	if !ok {
		return model.ScoreResponse{}, fmt.Errorf("%w: response is not a JSON object", ErrMalformedResponse)
	}

	resp := model.ScoreResponse{
		ExamID:          obj.str(examIDFields),
		ExamName:        obj.str(examNameFields),
		StudentID:       obj.str(studentIDFields),
		EvaluationError: obj.str(evalErrorFields),
		Details:         []model.ScoreDetail{},
	}
	resp.QuestionCount, _ = obj.integer(questionCountFields)

	// Newer engines nest exam identity under "exam".
	if exam := obj.child([]string{"exam"}); exam != nil {
		if resp.ExamID == "" {
			resp.ExamID = exam.str([]string{"id"})
		}
		if resp.ExamName == "" {
			resp.ExamName = exam.str([]string{"name"})
		}
	}

	// Counters live under "evaluation"; older engines put them at the top level.
	eval := obj.child(evaluationFields)
	var hasCorrect, hasWrong bool
	if eval != nil {
		resp.CorrectCount, hasCorrect = eval.integer(correctCountFields)
		resp.WrongCount, hasWrong = eval.integer(wrongCountFields)
	}
	if !hasCorrect {
		resp.CorrectCount, _ = obj.integer(correctCountFields)
	}
	if !hasWrong {
		resp.WrongCount, _ = obj.integer(wrongCountFields)
	}
	if eval == nil {
		return resp, nil
	}

	rawDetails, ok := eval.probe(detailsFields)
	if !ok {
		return resp, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawDetails, &items); err != nil {
		return resp, nil
	}
	for i, item := range items {
		d, _ := decodeObject(item)
		num, ok := d.integer(questionNumFields)
		if !ok {
			num = i + 1
		}
		resp.Details = append(resp.Details, model.ScoreDetail{
			QuestionNumber: num,
			Correct:        d.str(correctFields),
			Detected:       d.str(detectedFields),
			IsCorrect:      d.boolean(isCorrectFields),
		})
	}
	return resp, nil
}
