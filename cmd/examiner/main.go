package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/ideageek/examiner/internal/engine"
	"github.com/ideageek/examiner/internal/handler"
	appI18n "github.com/ideageek/examiner/internal/i18n"
	"github.com/ideageek/examiner/internal/model"
	"github.com/ideageek/examiner/internal/sheet"
	"github.com/ideageek/examiner/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examiner",
		Short: "Question sheet generation and scoring service",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), seedDemoCmd(), templateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examiner --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "examiner.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addSheetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("python-path", "python", "Interpreter used to run the sheet engine")
	f.String("script-path", "", "Path to the sheet engine script")
	f.Duration("engine-timeout", 2*time.Minute, "Kill the sheet engine after this long (0 disables)")
	f.String("documents-folder", "Documents/Exam", "Folder for generated sheets and uploaded scans")
	f.String("documents-url-prefix", "/Documents/Exam", "URL prefix for documents (absolute URL, path, or empty)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	addSheetFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.StringSlice("exams", nil, "Exam definition JSON files to import at startup (repeatable)")
	f.Bool("seed-demo", false, "Seed the demo exam at startup")
	f.String("admin-password", "", "Initial admin password (or set EXAMINER_ADMIN_PASSWORD)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examiner")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examiner")
	v.AddConfigPath("/etc/examiner")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func sheetConfig(v *viper.Viper) model.SheetConfig {
	return model.SheetConfig{
		DocumentsFolder:    v.GetString("documents-folder"),
		DocumentsURLPrefix: v.GetString("documents-url-prefix"),
	}
}

func newSheetService(db *store.Store, v *viper.Viper) *sheet.Service {
	eng := engine.NewProcess(engine.Config{
		PythonPath: v.GetString("python-path"),
		ScriptPath: v.GetString("script-path"),
		Timeout:    v.GetDuration("engine-timeout"),
	})
	return sheet.NewService(db, eng, sheetConfig(v))
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}
	if v.GetBool("seed-demo") {
		if _, err := db.SeedDemo(); err != nil {
			return fmt.Errorf("seed demo: %w", err)
		}
	}
	if _, err := loadExams(db, v.GetStringSlice("exams")); err != nil {
		return fmt.Errorf("load exams: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	if v.GetString("script-path") == "" {
		slog.Warn("script-path is not set; sheet generation and scoring will fail until it is configured")
	}

	h := handler.New(db, newSheetService(db, v))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"python_path", v.GetString("python-path"),
		"script_path", v.GetString("script-path"),
		"engine_timeout", v.GetDuration("engine-timeout"),
		"documents_folder", v.GetString("documents-folder"),
		"documents_url_prefix", v.GetString("documents-url-prefix"),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMINER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
