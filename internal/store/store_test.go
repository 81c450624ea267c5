package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ideageek/examiner/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func sampleImport() model.ExamImport {
	return model.ExamImport{
		Name:         "Physics Midterm",
		Subject:      "Physics",
		ExamDate:     "2024-03-07",
		TemplateName: "Physics OMR",
		SchoolCode:   "SCH-1",
		ClassName:    "Grade 11",
		Questions: []model.QuestionImport{
			{
				Number:        2,
				Text:          "Unit of force?",
				CorrectOption: "b",
				Options: []model.OptionImport{
					{Key: "A", Text: "Joule"},
					{Key: "B", Text: "Newton"},
					{Key: "C", Text: "Watt"},
				},
			},
			{
				Number:        1,
				Text:          "Speed of light?",
				CorrectOption: "C",
				Options: []model.OptionImport{
					{Key: "C", Text: "3e8 m/s"},
					{Key: "A", Text: "340 m/s"},
				},
			},
			{
				Number: 3,
				Text:   "Derive the kinetic energy formula.",
				Type:   model.QuestionTypeDetailed,
				Lines:  intPtr(8),
				Marks:  intPtr(5),
			},
		},
	}
}

func TestSchoolClassStudent(t *testing.T) {
	s := newTestStore(t)

	// Missing lookups return nil, nil.
	sc, err := s.GetSchoolByCode("NOPE")
	if err != nil || sc != nil {
		t.Fatalf("GetSchoolByCode(missing) = %v, %v", sc, err)
	}
	st, err := s.GetStudentByNumber("NOPE")
	if err != nil || st != nil {
		t.Fatalf("GetStudentByNumber(missing) = %v, %v", st, err)
	}

	schoolID, err := s.CreateSchool(model.School{Name: "North", Code: "N-1"})
	if err != nil {
		t.Fatalf("CreateSchool: %v", err)
	}
	classID, err := s.CreateClass(model.Class{SchoolID: schoolID, Name: "7B"})
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	if _, err := s.CreateStudent(model.Student{
		SchoolID: schoolID, ClassID: classID, StudentNumber: "S-9", FirstName: "Ada", LastName: "Lovelace",
	}); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}

	sc, err = s.GetSchoolByCode("N-1")
	if err != nil || sc == nil || sc.ID != schoolID {
		t.Fatalf("GetSchoolByCode = %+v, %v", sc, err)
	}
	c, err := s.GetClassByName(schoolID, "7B")
	if err != nil || c == nil || c.ID != classID {
		t.Fatalf("GetClassByName = %+v, %v", c, err)
	}
	st, err = s.GetStudentByNumber("S-9")
	if err != nil || st == nil {
		t.Fatalf("GetStudentByNumber = %+v, %v", st, err)
	}
	if st.ClassID != classID || st.DisplayName() != "Ada Lovelace" {
		t.Errorf("student = %+v", st)
	}

	// Student numbers are unique.
	if _, err := s.CreateStudent(model.Student{
		SchoolID: schoolID, ClassID: classID, StudentNumber: "S-9", FirstName: "Dup",
	}); err == nil {
		t.Error("expected error for duplicate student number")
	}
}

func TestExamCRUD(t *testing.T) {
	s := newTestStore(t)

	e, err := s.GetExam(uuid.New())
	if err != nil || e != nil {
		t.Fatalf("GetExam(missing) = %v, %v", e, err)
	}

	date := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	id, err := s.CreateExam(model.Exam{Name: "Quiz", Subject: "Maths", TotalMarks: 5, QuestionCount: 5, ExamDate: &date})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	e, err = s.GetExam(id)
	if err != nil || e == nil {
		t.Fatalf("GetExam = %v, %v", e, err)
	}
	if e.Kind != model.ExamKindMcq {
		t.Errorf("kind = %q, want default %q", e.Kind, model.ExamKindMcq)
	}
	if e.ExamDate == nil || !e.ExamDate.Equal(date) {
		t.Errorf("exam date = %v, want %v", e.ExamDate, date)
	}

	e.QuestionSheetFileName = "Quiz_QuestionSheet_07032024.png"
	e.AnswerSheetFileName = "Quiz_AnswerSheet_07032024.png"
	if err := s.UpdateExam(*e); err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	e, _ = s.GetExam(id)
	if e.QuestionSheetFileName != "Quiz_QuestionSheet_07032024.png" || e.AnswerSheetFileName != "Quiz_AnswerSheet_07032024.png" {
		t.Errorf("file names not persisted: %+v", e)
	}

	exams, err := s.ListExams()
	if err != nil || len(exams) != 1 {
		t.Fatalf("ListExams = %d, %v", len(exams), err)
	}

	if err := s.DeleteExam(id); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if e, _ := s.GetExam(id); e != nil {
		t.Error("exam still present after delete")
	}
}

func TestQuestionsAndOptionsOrdering(t *testing.T) {
	s := newTestStore(t)
	examID, err := s.CreateExam(model.Exam{Name: "Order"})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	for _, n := range []int{3, 1, 2} {
		qID, err := s.InsertQuestion(model.Question{ExamID: examID, QuestionNumber: n, Text: "Q", CorrectOption: "A"})
		if err != nil {
			t.Fatalf("InsertQuestion %d: %v", n, err)
		}
		err = s.InsertOptions(qID, []model.QuestionOption{
			{Key: "B", Text: "second", Order: 2},
			{Key: "A", Text: "first", Order: 1},
		})
		if err != nil {
			t.Fatalf("InsertOptions %d: %v", n, err)
		}
	}

	qs, err := s.ListQuestionsByExam(examID)
	if err != nil {
		t.Fatalf("ListQuestionsByExam: %v", err)
	}
	for i, q := range qs {
		if q.QuestionNumber != i+1 {
			t.Errorf("questions[%d].QuestionNumber = %d", i, q.QuestionNumber)
		}
		if q.Type != model.QuestionTypeMcq {
			t.Errorf("questions[%d].Type = %q, want default Mcq", i, q.Type)
		}
	}

	opts, err := s.ListOptionsByExam(examID)
	if err != nil {
		t.Fatalf("ListOptionsByExam: %v", err)
	}
	if len(opts) != 6 {
		t.Fatalf("expected 6 options, got %d", len(opts))
	}
	for i, o := range opts {
		want := "A"
		if i%2 == 1 {
			want = "B"
		}
		if o.Key != want {
			t.Errorf("options[%d].Key = %q, want %q", i, o.Key, want)
		}
	}

	count, _ := s.QuestionCount(examID)
	if count != 3 {
		t.Errorf("QuestionCount = %d, want 3", count)
	}

	// Options go with their question.
	if err := s.DeleteQuestion(qs[0].ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	opts, _ = s.ListOptionsByExam(examID)
	if len(opts) != 4 {
		t.Errorf("expected 4 options after delete, got %d", len(opts))
	}
}

func TestDefaultTemplate(t *testing.T) {
	s := newTestStore(t)
	examID, _ := s.CreateExam(model.Exam{Name: "T"})

	tmpl, err := s.GetDefaultTemplate(examID)
	if err != nil || tmpl != nil {
		t.Fatalf("GetDefaultTemplate(none) = %v, %v", tmpl, err)
	}

	if _, err := s.CreateTemplate(model.QuestionSheetTemplate{ExamID: examID, Name: "Draft"}); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if tmpl, _ := s.GetDefaultTemplate(examID); tmpl != nil {
		t.Errorf("non-default template returned: %+v", tmpl)
	}

	if _, err := s.CreateTemplate(model.QuestionSheetTemplate{ExamID: examID, Name: "Main", IsDefault: true}); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	tmpl, err = s.GetDefaultTemplate(examID)
	if err != nil || tmpl == nil || tmpl.Name != "Main" {
		t.Fatalf("GetDefaultTemplate = %+v, %v", tmpl, err)
	}

	ok, _ := s.TemplateExists(examID, "Draft")
	if !ok {
		t.Error("TemplateExists(Draft) = false")
	}
	ok, _ = s.TemplateExists(examID, "Other")
	if ok {
		t.Error("TemplateExists(Other) = true")
	}
}

func TestImportExam(t *testing.T) {
	s := newTestStore(t)

	examID, err := s.ImportExam(sampleImport())
	if err != nil {
		t.Fatalf("ImportExam: %v", err)
	}

	e, _ := s.GetExam(examID)
	if e == nil {
		t.Fatal("imported exam not found")
	}
	if e.QuestionCount != 3 || e.TotalMarks != 3 {
		t.Errorf("counts = %d/%d, want 3/3", e.QuestionCount, e.TotalMarks)
	}
	if e.ExamDate == nil || e.ExamDate.Format(time.DateOnly) != "2024-03-07" {
		t.Errorf("exam date = %v", e.ExamDate)
	}

	qs, _ := s.ListQuestionsByExam(examID)
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	if qs[1].CorrectOption != "B" {
		t.Errorf("correct option not normalized: %q", qs[1].CorrectOption)
	}
	if qs[2].Type != model.QuestionTypeDetailed || qs[2].Lines == nil || *qs[2].Lines != 8 {
		t.Errorf("detailed question = %+v", qs[2])
	}

	// Options keep their listed order, not key order.
	opts, _ := s.ListOptionsByExam(examID)
	if len(opts) != 5 || opts[0].Key != "C" || opts[1].Key != "A" {
		t.Errorf("options = %+v", opts)
	}

	tmpl, _ := s.GetDefaultTemplate(examID)
	if tmpl == nil || tmpl.Name != "Physics OMR" {
		t.Errorf("default template = %+v", tmpl)
	}

	// A second import reuses the school and class.
	second := sampleImport()
	second.Name = "Physics Final"
	id2, err := s.ImportExam(second)
	if err != nil {
		t.Fatalf("second ImportExam: %v", err)
	}
	e2, _ := s.GetExam(id2)
	if e2.SchoolID != e.SchoolID || e2.ClassID != e.ClassID {
		t.Error("second import created a new school or class")
	}
}

func TestImportExamInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ExamImport)
	}{
		{"no name", func(ei *model.ExamImport) { ei.Name = " " }},
		{"no questions", func(ei *model.ExamImport) { ei.Questions = nil }},
		{"bad exam id", func(ei *model.ExamImport) { ei.ID = "not-a-uuid" }},
		{"bad date", func(ei *model.ExamImport) { ei.ExamDate = "07/03/2024" }},
		{"correct option missing", func(ei *model.ExamImport) { ei.Questions[0].CorrectOption = "Z" }},
		{"gap in numbering", func(ei *model.ExamImport) { ei.Questions[2].Number = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ei := sampleImport()
			tt.mutate(&ei)
			_, err := s.ImportExam(ei)
			if !errors.Is(err, model.ErrInvalidImport) {
				t.Fatalf("err = %v, want ErrInvalidImport", err)
			}
			exams, _ := s.ListExams()
			if len(exams) != 0 {
				t.Errorf("invalid import left %d exams behind", len(exams))
			}
		})
	}
}

func TestImportExamRollsBackSchoolAndClass(t *testing.T) {
	s := newTestStore(t)

	first := sampleImport()
	first.ID = uuid.NewString()
	if _, err := s.ImportExam(first); err != nil {
		t.Fatalf("ImportExam: %v", err)
	}

	// Same exam id under a new school: the exam insert fails after the
	// school and class were created inside the transaction.
	second := sampleImport()
	second.ID = first.ID
	second.SchoolCode = "SCH-NEW"
	second.ClassName = "Grade 12"
	if _, err := s.ImportExam(second); err == nil {
		t.Fatal("expected error for duplicate exam id")
	}

	sc, err := s.GetSchoolByCode("SCH-NEW")
	if err != nil {
		t.Fatalf("GetSchoolByCode: %v", err)
	}
	if sc != nil {
		t.Errorf("failed import left school %+v behind", sc)
	}
	exams, _ := s.ListExams()
	if len(exams) != 1 {
		t.Errorf("expected 1 exam, got %d", len(exams))
	}
}

func TestSeedDemoIdempotent(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		id, err := s.SeedDemo()
		if err != nil {
			t.Fatalf("SeedDemo run %d: %v", i+1, err)
		}
		if id != DemoExamID {
			t.Fatalf("SeedDemo returned %s, want %s", id, DemoExamID)
		}
	}

	count, _ := s.QuestionCount(DemoExamID)
	if count != demoQuestionCount {
		t.Errorf("QuestionCount = %d, want %d", count, demoQuestionCount)
	}
	opts, _ := s.ListOptionsByExam(DemoExamID)
	if len(opts) != demoQuestionCount*4 {
		t.Errorf("options = %d, want %d", len(opts), demoQuestionCount*4)
	}
	qs, _ := s.ListQuestionsByExam(DemoExamID)
	if qs[0].CorrectOption != "A" || qs[1].CorrectOption != "B" {
		t.Errorf("unexpected demo answer key: %q %q", qs[0].CorrectOption, qs[1].CorrectOption)
	}
	if st, _ := s.GetStudentByNumber(demoStudentNumber); st == nil {
		t.Error("demo student missing")
	}
	if tmpl, _ := s.GetDefaultTemplate(DemoExamID); tmpl == nil || tmpl.Name != demoTemplateName {
		t.Errorf("demo template = %+v", tmpl)
	}
}

func issueTestSheet(t *testing.T, s *Store, code string) model.AnswerSheet {
	t.Helper()
	if _, err := s.SeedDemo(); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	st, _ := s.GetStudentByNumber(demoStudentNumber)
	a := model.AnswerSheet{
		ExamID:        DemoExamID,
		StudentID:     st.ID,
		StudentNumber: st.StudentNumber,
		SheetCode:     code,
		GeneratedAt:   time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC),
	}
	id, err := s.InsertAnswerSheet(a)
	if err != nil {
		t.Fatalf("InsertAnswerSheet: %v", err)
	}
	a.ID = id
	return a
}

func TestAnswerSheetLookup(t *testing.T) {
	s := newTestStore(t)
	a := issueTestSheet(t, s, "EXAM-1")

	got, err := s.GetAnswerSheetByCode("EXAM-1", demoStudentNumber)
	if err != nil || got == nil {
		t.Fatalf("GetAnswerSheetByCode = %v, %v", got, err)
	}
	if got.ID != a.ID || got.ScannedAt != nil || got.CorrectCount != nil {
		t.Errorf("fresh sheet = %+v", got)
	}

	// The code must belong to the given student.
	got, err = s.GetAnswerSheetByCode("EXAM-1", "STU-9999")
	if err != nil || got != nil {
		t.Errorf("lookup with wrong student = %v, %v", got, err)
	}

	// Sheet codes are unique.
	if _, err := s.InsertAnswerSheet(model.AnswerSheet{
		ExamID: a.ExamID, StudentID: a.StudentID, StudentNumber: a.StudentNumber,
		SheetCode: "EXAM-1", GeneratedAt: a.GeneratedAt,
	}); !errors.Is(err, model.ErrSheetCodeTaken) {
		t.Errorf("duplicate sheet code: err = %v, want ErrSheetCodeTaken", err)
	}
}

func TestSaveEvaluationReplacesDetails(t *testing.T) {
	s := newTestStore(t)
	a := issueTestSheet(t, s, "EXAM-2")
	qs, _ := s.ListQuestionsByExam(DemoExamID)
	scanned := time.Date(2024, 3, 7, 11, 0, 0, 0, time.UTC)

	first := []model.AnswerSheetDetail{
		{QuestionID: qs[0].ID, QuestionNumber: 1, SelectedOption: strPtr("A"), IsCorrect: true, Marks: 1},
		{QuestionID: qs[1].ID, QuestionNumber: 2, SelectedOption: strPtr("C")},
		{QuestionID: qs[2].ID, QuestionNumber: 3},
	}
	if err := s.SaveEvaluation(a.ID, first, model.EvaluationSummary{TotalMarks: 1, CorrectCount: 1, WrongCount: 1, BlankCount: 1}, scanned); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	second := []model.AnswerSheetDetail{
		{QuestionID: qs[0].ID, QuestionNumber: 1, SelectedOption: strPtr("A"), IsCorrect: true, Marks: 1},
		{QuestionID: qs[1].ID, QuestionNumber: 2, SelectedOption: strPtr("B"), IsCorrect: true, Marks: 1},
	}
	if err := s.SaveEvaluation(a.ID, second, model.EvaluationSummary{TotalMarks: 2, CorrectCount: 2}, scanned.Add(time.Hour)); err != nil {
		t.Fatalf("SaveEvaluation again: %v", err)
	}

	details, err := s.GetAnswerSheetDetails(a.ID)
	if err != nil {
		t.Fatalf("GetAnswerSheetDetails: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 details after re-evaluation, got %d", len(details))
	}
	if details[1].SelectedOption == nil || *details[1].SelectedOption != "B" || !details[1].IsCorrect {
		t.Errorf("details[1] = %+v", details[1])
	}

	got, _ := s.GetAnswerSheetByCode("EXAM-2", demoStudentNumber)
	if got.CorrectCount == nil || *got.CorrectCount != 2 || got.BlankCount == nil || *got.BlankCount != 0 {
		t.Errorf("summary = %+v", got)
	}
	if got.ScannedAt == nil || !got.ScannedAt.Equal(scanned.Add(time.Hour)) {
		t.Errorf("scanned_at = %v", got.ScannedAt)
	}
}

func TestSaveEvaluationUnknownSheet(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveEvaluation(uuid.New(), []model.AnswerSheetDetail{{QuestionID: uuid.New(), QuestionNumber: 1}}, model.EvaluationSummary{}, time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestExportEvaluations(t *testing.T) {
	s := newTestStore(t)

	export, err := s.ExportEvaluations(uuid.New())
	if err != nil || export != nil {
		t.Fatalf("ExportEvaluations(missing) = %v, %v", export, err)
	}

	evaluated := issueTestSheet(t, s, "EXAM-3")
	_ = issueTestSheet(t, s, "EXAM-4")
	qs, _ := s.ListQuestionsByExam(DemoExamID)
	details := []model.AnswerSheetDetail{
		{QuestionID: qs[0].ID, QuestionNumber: 1, SelectedOption: strPtr("B")},
	}
	if err := s.SaveEvaluation(evaluated.ID, details, model.EvaluationSummary{WrongCount: 1, BlankCount: 9}, time.Now().UTC()); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	export, err = s.ExportEvaluations(DemoExamID)
	if err != nil {
		t.Fatalf("ExportEvaluations: %v", err)
	}
	if export.ExamID != DemoExamID.String() {
		t.Errorf("exam id = %q", export.ExamID)
	}
	// Only evaluated sheets are exported.
	if len(export.Sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(export.Sheets))
	}
	sh := export.Sheets[0]
	if sh.SheetCode != "EXAM-3" || sh.WrongCount != 1 || sh.BlankCount != 9 || len(sh.Answers) != 1 {
		t.Errorf("sheet = %+v", sh)
	}
}

func TestUsersAndAuthSessions(t *testing.T) {
	s := newTestStore(t)

	n, _ := s.UserCount()
	if n != 0 {
		t.Fatalf("UserCount = %d, want 0", n)
	}
	uid, err := s.CreateUser(model.User{Username: "teacher", PasswordHash: "x", Role: model.UserRoleTeacher, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "teacher", PasswordHash: "y", Role: model.UserRoleTeacher}); err == nil {
		t.Error("expected error for duplicate username")
	}

	u, err := s.GetUserByUsername("teacher")
	if err != nil || u == nil || u.ID != uid {
		t.Fatalf("GetUserByUsername = %+v, %v", u, err)
	}
	u, _ = s.GetUserByID(uid)
	if u == nil || u.Role != model.UserRoleTeacher || !u.Active {
		t.Errorf("GetUserByID = %+v", u)
	}
	if u, _ := s.GetUserByUsername("ghost"); u != nil {
		t.Errorf("unknown user returned %+v", u)
	}

	token, err := s.CreateAuthSession(uid)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil || sess.UserID != uid {
		t.Fatalf("GetAuthSession = %+v, %v", sess, err)
	}
	// Tokens are stored as digests.
	if sess.ID == token {
		t.Error("raw token stored as session id")
	}

	if sess, _ := s.GetAuthSession("bogus"); sess != nil {
		t.Error("bogus token accepted")
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("session still valid after delete")
	}
}

func TestExpiredAuthSession(t *testing.T) {
	s := newTestStore(t)
	uid, _ := s.CreateUser(model.User{Username: "u", PasswordHash: "x", Role: model.UserRoleAdmin, Active: true})
	token, _ := s.CreateAuthSession(uid)

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ?`, past); err != nil {
		t.Fatalf("expire session: %v", err)
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("expired session accepted")
	}

	if _, err := s.CreateAuthSession(uid); err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	_, _ = s.db.Exec(`UPDATE auth_sessions SET expires_at = ?`, past)
	if err := s.CleanupExpiredSessions(); err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	var count int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM auth_sessions`).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 sessions after cleanup, got %d", count)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("/exams/physics.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	for _, want := range []string{"abc123", "def456"} {
		if err := s.SetImportedFileHash("/exams/physics.json", want); err != nil {
			t.Fatalf("SetImportedFileHash: %v", err)
		}
		hash, _ = s.GetImportedFileHash("/exams/physics.json")
		if hash != want {
			t.Errorf("hash = %q, want %q", hash, want)
		}
	}
}
