// Package executor launches external analysis processes and enforces the
// process-level contract: one JSON parameter document in, one JSON result
// document on stdout, diagnostics on stderr, non-zero exit on failure.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/internal/config"
)

var (
	// ErrResultParse marks an exit-0 invocation whose stdout was not a single
	// valid JSON document. This fails the job, never the orchestrator.
	ErrResultParse = errors.New("result parse error")
	// ErrUnknownKind means no executable is registered for the analysis kind.
	ErrUnknownKind = errors.New("no executor registered for analysis kind")
)

// Request describes one invocation of an external analysis process.
type Request struct {
	JobID  uuid.UUID
	Kind   string
	Params map[string]any
}

// Invoker runs one external analysis and returns its parsed result document.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}

// ProcessInvoker is the production Invoker. The parameter document travels to
// @-file scripts through a transient side file keyed by job id (avoiding argv
// length and quoting issues) and to RawArgv scripts as the argv[1] JSON text
// they expect; stdout/stderr are collected either way.
type ProcessInvoker struct {
	cfg     config.AnalysisConfig
	scripts map[string]Script
}

// NewProcessInvoker builds an invoker over the default script registry.
func NewProcessInvoker(cfg config.AnalysisConfig) *ProcessInvoker {
	return &ProcessInvoker{cfg: cfg, scripts: defaultScripts()}
}

// NewProcessInvokerWithScripts builds an invoker with an explicit kind-to-script
// registry. Used by tests and deployments with non-standard script layouts.
func NewProcessInvokerWithScripts(cfg config.AnalysisConfig, scripts map[string]Script) *ProcessInvoker {
	return &ProcessInvoker{cfg: cfg, scripts: scripts}
}

const maxStderrInError = 512

func (p *ProcessInvoker) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	script, ok := p.scripts[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	params := make(map[string]any, len(req.Params)+2)
	for k, v := range req.Params {
		params[k] = v
	}
	params["processingId"] = req.JobID.String()
	params["outputDir"] = p.cfg.OutputDir

	doc, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal parameter document: %w", err)
	}

	paramArg := string(doc)
	if !script.RawArgv {
		paramPath := filepath.Join(p.cfg.ScratchDir, req.JobID.String()+".json")
		if err := os.WriteFile(paramPath, doc, 0o600); err != nil {
			return nil, fmt.Errorf("write parameter file: %w", err)
		}
		// The side file must be removed on every path, including parse failures.
		defer os.Remove(paramPath)
		paramArg = "@" + paramPath
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.cfg.PythonBin, filepath.Join(p.cfg.ScriptsDir, script.File), paramArg)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("analysis process exited with code %d: %s",
				exitErr.ExitCode(), stderrSummary(stderr.Bytes()))
		}
		return nil, fmt.Errorf("failed to start analysis process: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: process produced no output", ErrResultParse)
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("%w: stdout is not a valid JSON document", ErrResultParse)
	}
	return json.RawMessage(out), nil
}

// stderrSummary trims and bounds the diagnostic text carried into the job's
// error message.
func stderrSummary(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "no diagnostic output"
	}
	if len(b) > maxStderrInError {
		b = b[:maxStderrInError]
	}
	return string(b)
}
