package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/engine"
	"github.com/ideageek/examiner/internal/model"
)

const maxIssueAttempts = 10

// Store is the persistence the orchestrator needs. *store.Store satisfies it.
type Store interface {
	GetExam(id uuid.UUID) (*model.Exam, error)
	UpdateExam(e model.Exam) error
	ListQuestionsByExam(examID uuid.UUID) ([]model.Question, error)
	ListOptionsByExam(examID uuid.UUID) ([]model.QuestionOption, error)
	GetDefaultTemplate(examID uuid.UUID) (*model.QuestionSheetTemplate, error)
	GetStudentByNumber(studentNumber string) (*model.Student, error)
	InsertAnswerSheet(a model.AnswerSheet) (uuid.UUID, error)
	GetAnswerSheetByCode(sheetCode, studentNumber string) (*model.AnswerSheet, error)
	SaveEvaluation(answerSheetID uuid.UUID, details []model.AnswerSheetDetail, sum model.EvaluationSummary, scannedAt time.Time) error
}

// Service runs the sheet pipeline: compile, render, score, issue and evaluate.
type Service struct {
	store  Store
	engine engine.Engine
	cfg    model.SheetConfig
	locks  *keyedMutex
	now    func() time.Time
}

func NewService(st Store, eng engine.Engine, cfg model.SheetConfig) *Service {
	return &Service{
		store:  st,
		engine: eng,
		cfg:    cfg,
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
}

// Config returns the sheet settings the service was built with.
func (s *Service) Config() model.SheetConfig {
	return s.cfg
}

// load fetches an exam and compiles its template.
func (s *Service) load(examID uuid.UUID) (*model.Exam, *model.CompiledTemplate, error) {
	exam, err := s.store.GetExam(examID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, nil, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	questions, err := s.store.ListQuestionsByExam(examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, fmt.Errorf("questions for exam %s: %w", examID, ErrNotFound)
	}
	options, err := s.store.ListOptionsByExam(examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list options: %w", err)
	}

	name := model.DefaultTemplateName
	tmpl, err := s.store.GetDefaultTemplate(examID)
	if err != nil {
		return nil, nil, fmt.Errorf("get default template: %w", err)
	}
	if tmpl != nil && strings.TrimSpace(tmpl.Name) != "" {
		name = tmpl.Name
	}

	return exam, Compile(*exam, questions, options, name), nil
}

// Template returns the compiled template for an exam.
func (s *Service) Template(_ context.Context, examID uuid.UUID) (*model.CompiledTemplate, error) {
	_, t, err := s.load(examID)
	return t, err
}

// GenerateQuestionSheet renders the question sheet image and records its file name on the exam.
func (s *Service) GenerateQuestionSheet(ctx context.Context, examID uuid.UUID) (*model.SheetGenerationResponse, error) {
	return s.generate(ctx, examID, engine.ModeQuestionSheet, LabelQuestionSheet, func(e *model.Exam, name string) {
		e.QuestionSheetFileName = name
	})
}

// GenerateAnswerSheet renders the answer sheet image and records its file name on the exam.
func (s *Service) GenerateAnswerSheet(ctx context.Context, examID uuid.UUID) (*model.SheetGenerationResponse, error) {
	return s.generate(ctx, examID, engine.ModeAnswerSheet, LabelAnswerSheet, func(e *model.Exam, name string) {
		e.AnswerSheetFileName = name
	})
}

func (s *Service) generate(ctx context.Context, examID uuid.UUID, mode engine.Mode, label string, record func(*model.Exam, string)) (*model.SheetGenerationResponse, error) {
	exam, t, err := s.load(examID)
	if err != nil {
		return nil, err
	}
	payload, err := BuildPayload(t)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	start := s.now()
	out, err := s.engine.Run(ctx, engine.Request{Mode: mode, Payload: payload})
	if err != nil {
		return nil, err
	}
	img, err := engine.ParseImage(out)
	if err != nil {
		return nil, err
	}

	name := ImageFileName(exam.Name, label, s.now())
	if err := s.writeDocument(name, img); err != nil {
		return nil, err
	}

	record(exam, name)
	if err := s.store.UpdateExam(*exam); err != nil {
		return nil, fmt.Errorf("record sheet file name: %w", err)
	}

	slog.Info("sheet generated", "exam_id", examID, "mode", mode, "file", name, "duration", s.now().Sub(start))
	return &model.SheetGenerationResponse{
		ExamID:   exam.ID,
		ExamName: exam.Name,
		FileName: name,
		URL:      DocumentURL(s.cfg.DocumentsURLPrefix, name),
	}, nil
}

func (s *Service) writeDocument(name string, data []byte) error {
	if err := os.MkdirAll(s.cfg.DocumentsFolder, 0o755); err != nil {
		return fmt.Errorf("create documents folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.cfg.DocumentsFolder, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CalculateScore saves an uploaded scan and has the engine score it. The
// result is returned as feedback only; nothing is persisted.
func (s *Service) CalculateScore(ctx context.Context, examID uuid.UUID, studentID string, upload io.Reader, originalName string) (*model.ScoreResponse, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, fmt.Errorf("student id is required: %w", ErrValidation)
	}
	if upload == nil {
		return nil, fmt.Errorf("answer sheet file is required: %w", ErrValidation)
	}

	exam, t, err := s.load(examID)
	if err != nil {
		return nil, err
	}

	name := ScanFileName(exam.Name, LabelScan, studentID, originalName, s.now())
	path, err := s.saveUpload(name, upload)
	if err != nil {
		return nil, err
	}

	payload, err := BuildPayload(t)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	out, err := s.engine.Run(ctx, engine.Request{
		Mode:         engine.ModeScoreCheck,
		Payload:      payload,
		StudentID:    studentID,
		ScannedSheet: path,
	})
	if err != nil {
		return nil, err
	}
	resp, err := engine.ParseScore(out)
	if err != nil {
		return nil, err
	}
	resp.ScannedFileName = name
	if resp.EvaluationError != "" {
		slog.Warn("engine reported evaluation error", "exam_id", examID, "student_id", studentID, "error", resp.EvaluationError)
	}
	return &resp, nil
}

// saveUpload writes the upload into the documents folder and returns its absolute path.
func (s *Service) saveUpload(name string, upload io.Reader) (string, error) {
	if seeker, ok := upload.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind upload: %w", err)
		}
	}
	if err := os.MkdirAll(s.cfg.DocumentsFolder, 0o755); err != nil {
		return "", fmt.Errorf("create documents folder: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(s.cfg.DocumentsFolder, name))
	if err != nil {
		return "", fmt.Errorf("resolve upload path: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	n, copyErr := io.Copy(f, upload)
	closeErr := f.Close()
	if copyErr == nil && n == 0 {
		os.Remove(path)
		return "", fmt.Errorf("answer sheet file is empty: %w", ErrValidation)
	}
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// IssueSheet creates a new answer sheet for a student and returns its QR code
// and printable questions.
func (s *Service) IssueSheet(_ context.Context, examID uuid.UUID, studentNumber string) (*model.IssuedSheetResponse, error) {
	studentNumber = strings.TrimSpace(studentNumber)
	if studentNumber == "" {
		return nil, fmt.Errorf("student number is required: %w", ErrValidation)
	}
	student, err := s.store.GetStudentByNumber(studentNumber)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, fmt.Errorf("student %s: %w", studentNumber, ErrNotFound)
	}
	exam, t, err := s.load(examID)
	if err != nil {
		return nil, err
	}

	// Codes have one-second resolution; a taken code moves on to the next second.
	now := s.now().UTC()
	var code string
	for attempt := 0; ; attempt++ {
		at := now.Add(time.Duration(attempt) * time.Second)
		code = SheetCode(exam.ID, student.StudentNumber, at)
		_, err := s.store.InsertAnswerSheet(model.AnswerSheet{
			ExamID:        exam.ID,
			StudentID:     student.ID,
			StudentNumber: student.StudentNumber,
			SheetCode:     code,
			GeneratedAt:   at,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, model.ErrSheetCodeTaken) || attempt+1 == maxIssueAttempts {
			return nil, fmt.Errorf("insert answer sheet: %w", err)
		}
	}

	qrText, qrPNG, err := EncodeQR(model.QRPayload{
		SheetCode:     code,
		StudentNumber: student.StudentNumber,
		ExamID:        exam.ID,
		QuestionCount: exam.QuestionCount,
	})
	if err != nil {
		return nil, err
	}

	resp := &model.IssuedSheetResponse{
		SheetCode:     code,
		StudentNumber: student.StudentNumber,
		StudentName:   student.DisplayName(),
		ExamName:      exam.Name,
		Base64QRPng:   qrPNG,
		QRPayload:     qrText,
		Questions:     make([]model.IssuedSheetQuestion, 0, len(t.Questions)),
	}
	for _, q := range t.Questions {
		resp.Questions = append(resp.Questions, model.IssuedSheetQuestion{
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Options:        q.Options,
		})
	}

	slog.Info("sheet issued", "exam_id", exam.ID, "sheet_code", code, "student", student.StudentNumber)
	return resp, nil
}

// Evaluate scores a digitally submitted answer set and replaces any earlier
// evaluation of the same sheet.
func (s *Service) Evaluate(_ context.Context, req model.EvaluationRequest) (*model.EvaluationResponse, error) {
	req.SheetCode = strings.TrimSpace(req.SheetCode)
	req.StudentNumber = strings.TrimSpace(req.StudentNumber)
	if req.SheetCode == "" || req.StudentNumber == "" {
		return nil, fmt.Errorf("sheet code and student number are required: %w", ErrValidation)
	}

	sheet, err := s.store.GetAnswerSheetByCode(req.SheetCode, req.StudentNumber)
	if err != nil {
		return nil, fmt.Errorf("get answer sheet: %w", err)
	}
	if sheet == nil {
		return nil, fmt.Errorf("sheet %s for student %s: %w", req.SheetCode, req.StudentNumber, ErrNotFound)
	}
	exam, err := s.store.GetExam(sheet.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, fmt.Errorf("exam %s: %w", sheet.ExamID, ErrNotFound)
	}
	questions, err := s.store.ListQuestionsByExam(exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("questions for exam %s: %w", exam.ID, ErrNotFound)
	}

	details, sum := Score(*exam, questions, req.Answers)
	for i := range details {
		details[i].AnswerSheetID = sheet.ID
	}

	unlock := s.locks.Lock(sheet.ID)
	defer unlock()
	if err := s.store.SaveEvaluation(sheet.ID, details, sum, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("save evaluation: %w", err)
	}

	resp := &model.EvaluationResponse{
		SheetCode:     sheet.SheetCode,
		StudentNumber: sheet.StudentNumber,
		ExamName:      exam.Name,
		TotalMarks:    sum.TotalMarks,
		ObtainedMarks: sum.CorrectCount,
		CorrectCount:  sum.CorrectCount,
		WrongCount:    sum.WrongCount,
		BlankCount:    sum.BlankCount,
		Details:       make([]model.EvaluationDetail, 0, len(details)),
	}
	correct := make(map[int]string, len(questions))
	for _, q := range questions {
		correct[q.QuestionNumber] = q.CorrectOption
	}
	for _, d := range details {
		resp.Details = append(resp.Details, model.EvaluationDetail{
			QuestionNumber: d.QuestionNumber,
			SelectedOption: d.SelectedOption,
			CorrectOption:  strings.ToUpper(strings.TrimSpace(correct[d.QuestionNumber])),
			IsCorrect:      d.IsCorrect,
			Marks:          d.Marks,
		})
	}

	slog.Info("sheet evaluated", "sheet_code", sheet.SheetCode,
		"correct", sum.CorrectCount, "wrong", sum.WrongCount, "blank", sum.BlankCount)
	return resp, nil
}

// Score classifies answers for question numbers 1..exam.QuestionCount that
// exist in questions. A correct answer earns one mark.
func Score(exam model.Exam, questions []model.Question, answers map[int]*string) ([]model.AnswerSheetDetail, model.EvaluationSummary) {
	byNumber := make(map[int]model.Question, len(questions))
	for _, q := range questions {
		byNumber[q.QuestionNumber] = q
	}

	sum := model.EvaluationSummary{TotalMarks: exam.TotalMarks}
	var details []model.AnswerSheetDetail
	for n := 1; n <= exam.QuestionCount; n++ {
		q, ok := byNumber[n]
		if !ok {
			continue
		}
		d := model.AnswerSheetDetail{QuestionID: q.ID, QuestionNumber: n}
		d.SelectedOption = NormalizeAnswer(answers[n])
		switch {
		case d.SelectedOption == nil:
			sum.BlankCount++
		case strings.EqualFold(*d.SelectedOption, strings.TrimSpace(q.CorrectOption)):
			d.IsCorrect = true
			d.Marks = 1
			sum.CorrectCount++
		default:
			sum.WrongCount++
		}
		details = append(details, d)
	}
	return details, sum
}

// NormalizeAnswer reduces a submitted answer to its first character,
// upper-cased, or nil when nothing was submitted.
func NormalizeAnswer(a *string) *string {
	if a == nil {
		return nil
	}
	v := strings.TrimSpace(*a)
	if v == "" {
		return nil
	}
	r, _ := utf8.DecodeRuneInString(v)
	out := string(unicode.ToUpper(r))
	return &out
}
