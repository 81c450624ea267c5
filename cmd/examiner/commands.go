package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ideageek/examiner/internal/model"
	"github.com/ideageek/examiner/internal/sheet"
	"github.com/ideageek/examiner/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import exam definitions from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addCommonFlags(cmd)
	return cmd
}

func seedDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Create the demo school, student and ten-question exam",
		RunE:  runSeedDemo,
	}
	addCommonFlags(cmd)
	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template EXAM-ID",
		Short: "Print the compiled question sheet template of an exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplate,
	}
	addCommonFlags(cmd)
	addSheetFlags(cmd)
	cmd.Flags().Bool("payload", false, "Print the engine payload instead of the template")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export evaluated answer sheets as JSON",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("exam-id", "", "Exam to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")

	_ = cmd.MarkFlagRequired("exam-id")

	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := loadExams(db, args)
	if err != nil {
		return err
	}
	slog.Info("import finished", "files", len(args), "imported", n)
	return nil
}

func runSeedDemo(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	examID, err := db.SeedDemo()
	if err != nil {
		return fmt.Errorf("seed demo: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), examID)
	return nil
}

func runTemplate(cmd *cobra.Command, args []string) error {
	examID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse exam id: %w", err)
	}
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	v := viperForCmd(cmd)
	svc := newSheetService(db, v)
	t, err := svc.Template(context.Background(), examID)
	if err != nil {
		return err
	}

	var data []byte
	if v.GetBool("payload") {
		data, err = sheet.BuildPayload(t)
	} else {
		data, err = json.MarshalIndent(t, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runExport(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	v := viperForCmd(cmd)

	examID, err := uuid.Parse(v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("parse exam id: %w", err)
	}
	export, err := db.ExportEvaluations(examID)
	if err != nil {
		return fmt.Errorf("export evaluations: %w", err)
	}
	if export == nil {
		return fmt.Errorf("exam %s not found", examID)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported evaluations", "exam_id", examID, "sheets", len(export.Sheets))
	return nil
}

// loadExams imports each exam definition file once. A file whose content
// hash was already recorded is skipped; a changed file is skipped with a
// warning so existing sheets keep their questions.
func loadExams(db *store.Store, paths []string) (int, error) {
	imported := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return imported, fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return imported, fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("exam file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("exam file changed since last import, skipping to avoid breaking issued sheets", "path", path)
			continue
		}

		var ei model.ExamImport
		if err := json.Unmarshal(data, &ei); err != nil {
			return imported, fmt.Errorf("parse %s: %w", path, err)
		}
		examID, err := db.ImportExam(ei)
		if err != nil {
			return imported, fmt.Errorf("import %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return imported, fmt.Errorf("record import for %s: %w", path, err)
		}
		imported++
		slog.Info("imported exam", "path", path, "exam_id", examID, "questions", len(ei.Questions))
	}
	return imported, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
