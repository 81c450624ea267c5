package sheet

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	LabelQuestionSheet = "QuestionSheet"
	LabelAnswerSheet   = "AnswerSheet"
	LabelScan          = "jackscore"

	fileDateLayout  = "02012006"       // ddMMyyyy
	sheetCodeLayout = "20060102150405" // yyyyMMddHHmmss
)

// SanitizeFileName replaces every character that is invalid in a file name,
// and every space, with an underscore. The mapping is one-to-one per
// character, so inputs that differ in already-safe characters stay distinct.
func SanitizeFileName(name string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if s == "" {
		return "_"
	}
	return s
}

// ImageFileName names an engine-produced image: {exam}[_label]_{ddMMyyyy}.png.
func ImageFileName(examName, label string, at time.Time) string {
	parts := []string{SanitizeFileName(examName)}
	if label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, at.Format(fileDateLayout))
	return strings.Join(parts, "_") + ".png"
}

// ScanFileName names a saved upload: {exam}_{label}_{student}_{ddMMyyyy}{ext}.
// The extension of the original file name is kept, defaulting to .png.
func ScanFileName(examName, label, studentID, originalName string, at time.Time) string {
	ext := filepath.Ext(filepath.Base(originalName))
	if ext == "" || ext == "." {
		ext = ".png"
	} else {
		ext = "." + SanitizeFileName(strings.TrimPrefix(ext, "."))
	}
	return fmt.Sprintf("%s_%s_%s_%s%s",
		SanitizeFileName(examName), label, SanitizeFileName(studentID), at.Format(fileDateLayout), ext)
}

// SheetCode builds EX-{first 6 hex of exam id}-{studentNumber}-{yyyyMMddHHmmss} in UTC.
func SheetCode(examID uuid.UUID, studentNumber string, at time.Time) string {
	hex := strings.ReplaceAll(examID.String(), "-", "")
	return fmt.Sprintf("EX-%s-%s-%s", strings.ToUpper(hex[:6]), studentNumber, at.UTC().Format(sheetCodeLayout))
}

// DocumentURL joins a configured prefix and a file name. An absolute prefix
// yields an absolute URL, a path fragment yields a root-relative URL and an
// empty prefix yields the bare file name.
func DocumentURL(prefix, fileName string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fileName
	}
	escaped := url.PathEscape(fileName)
	if u, err := url.Parse(prefix); err == nil && u.IsAbs() && u.Host != "" {
		return strings.TrimRight(prefix, "/") + "/" + escaped
	}
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return "/" + escaped
	}
	return "/" + trimmed + "/" + escaped
}
