package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects what the engine renders or checks.
type Mode string

const (
	ModeQuestionSheet Mode = "questionSheet"
	ModeAnswerSheet   Mode = "answerSheet"
	ModeScoreCheck    Mode = "scoreCheck"
)

// Request is one engine invocation.
type Request struct {
	Mode         Mode
	Payload      []byte // serialized template payload
	StudentID    string // optional
	ScannedSheet string // optional path to a saved scan
}

// Engine renders sheets and checks scans. It returns the engine's raw stdout.
type Engine interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// Config locates the external engine.
type Config struct {
	PythonPath string
	ScriptPath string
	Timeout    time.Duration // zero disables the timeout
	TempDir    string        // empty uses os.TempDir
}

// Process runs the engine as a fresh subprocess per call.
type Process struct {
	cfg Config
}

// NewProcess creates a subprocess-backed Engine. Configuration is checked on
// every call so a script deployed after startup is picked up.
func NewProcess(cfg Config) *Process {
	return &Process{cfg: cfg}
}

func (p *Process) resolve() (interpreter, script string, err error) {
	interpreter = strings.TrimSpace(p.cfg.PythonPath)
	if interpreter == "" {
		return "", "", fmt.Errorf("%w: interpreter path is not set", ErrConfiguration)
	}
	script = strings.TrimSpace(p.cfg.ScriptPath)
	if script == "" {
		return "", "", fmt.Errorf("%w: script path is not set", ErrConfiguration)
	}
	script, err = filepath.Abs(script)
	if err != nil {
		return "", "", fmt.Errorf("%w: resolve script path: %v", ErrConfiguration, err)
	}
	info, err := os.Stat(script)
	if err != nil {
		return "", "", fmt.Errorf("%w: script %s: %v", ErrConfiguration, script, err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%w: script %s is a directory", ErrConfiguration, script)
	}
	return interpreter, script, nil
}

// Run writes the payload to a temporary file, invokes the engine and returns
// its trimmed stdout. The temporary file is removed before Run returns.
func (p *Process) Run(ctx context.Context, req Request) ([]byte, error) {
	interpreter, script, err := p.resolve()
	if err != nil {
		return nil, err
	}

	payloadPath, err := writePayload(p.cfg.TempDir, req.Payload)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(payloadPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove engine payload", "path", payloadPath, "error", err)
		}
	}()

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, interpreter, append([]string{script}, buildArgs(req, payloadPath)...)...)
	cmd.Dir = filepath.Dir(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Bound the wait for output pipes held open by grandchildren after a kill.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	errText := strings.TrimSpace(stderr.String())

	if ctxErr := ctx.Err(); ctxErr != nil {
		slog.Error("engine aborted", "mode", req.Mode, "duration", elapsed, "error", ctxErr)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, elapsed.Round(time.Millisecond))
		}
		return nil, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Error("engine failed", "mode", req.Mode, "exit_code", exitErr.ExitCode(), "stderr", errText)
			return nil, &ExecError{ExitCode: exitErr.ExitCode(), Stderr: errText}
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: interpreter %q: %v", ErrConfiguration, interpreter, err)
		}
		return nil, fmt.Errorf("%w: start engine: %v", ErrExecution, err)
	}

	slog.Debug("engine finished", "mode", req.Mode, "duration", elapsed, "stderr", errText)

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

func buildArgs(req Request, payloadPath string) []string {
	args := []string{"--mode", string(req.Mode)}
	if req.StudentID != "" {
		args = append(args, "--student-id", req.StudentID)
	}
	if req.ScannedSheet != "" {
		args = append(args, "--scanned-sheet", req.ScannedSheet)
	}
	return append(args, "--json", payloadPath)
}

func writePayload(dir string, payload []byte) (string, error) {
	f, err := os.CreateTemp(dir, "sheet-payload-*.json")
	if err != nil {
		return "", fmt.Errorf("create payload file: %w", err)
	}
	path := f.Name()
	// The engine runs from the script's directory.
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write payload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close payload file: %w", err)
	}
	return path, nil
}
