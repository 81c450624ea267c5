package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NotFound"); got != "The requested resource was not found." {
		t.Errorf("T(NotFound) = %q", got)
	}
	if got := T(ctx, "EngineTimeout"); got != "The sheet engine did not respond in time." {
		t.Errorf("T(EngineTimeout) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "NotFound"); got != "Запрошенный ресурс не найден." {
		t.Errorf("T(NotFound) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsEvaluated", 1); got != "1 question evaluated." {
		t.Errorf("Tp(QuestionsEvaluated, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsEvaluated", 10); got != "10 questions evaluated." {
		t.Errorf("Tp(QuestionsEvaluated, 10) = %q", got)
	}

	ctx = initLang(t, "ru")
	if got := Tp(ctx, "QuestionsEvaluated", 5); got != "Проверено 5 вопросов." {
		t.Errorf("Tp(QuestionsEvaluated, 5) ru = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "SheetIssued", map[string]any{"Code": "EX-ABC123-S1-20240101000000"})
	if got != "Answer sheet EX-ABC123-S1-20240101000000 issued." {
		t.Errorf("Td(SheetIssued) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "LoggedOut")
	}))

	tests := []struct {
		header, want string
	}{
		{"ru-RU,ru;q=0.9", "Вы вышли из системы."},
		{"", "Logged out."},
		{"fr", "Logged out."},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("Accept-Language %q: got %q, want %q", tt.header, got, tt.want)
		}
	}
}
