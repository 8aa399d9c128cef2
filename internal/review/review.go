package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const DefaultCommand = "click-review"

// Result is the outcome of an automated package review.
type Result struct {
	Passed bool

	// Reason is the first blocking finding, empty when the tool gave none.
	Reason string
}

type Reviewer interface {
	Review(ctx context.Context, path string) (*Result, error)
}

type Config struct {
	Command string
	Logger  *zap.Logger
}

// CommandReviewer runs click-review --json against a package file.
type CommandReviewer struct {
	command string
	logger  *zap.Logger
}

var _ Reviewer = (*CommandReviewer)(nil)

func New(cfg *Config) *CommandReviewer {
	command := cfg.Command
	if command == "" {
		command = DefaultCommand
	}

	return &CommandReviewer{
		command: command,
		logger:  cfg.Logger,
	}
}

func (c *CommandReviewer) Review(ctx context.Context, path string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, "--json", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err == nil {
		return &Result{Passed: true}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to run %s: %w", c.command, err)
	}

	c.logger.Debug("review failed",
		zap.String("path", path),
		zap.Int("exitCode", exitErr.ExitCode()),
		zap.String("stderr", strings.TrimSpace(stderr.String())),
	)

	return ParseOutput(stdout.Bytes()), nil
}

type finding struct {
	Text         string `json:"text"`
	ManualReview bool   `json:"manual_review"`
}

type section struct {
	Error map[string]finding `json:"error"`
	Warn  map[string]finding `json:"warn"`
}

// ParseOutput extracts the blocking findings from click-review's JSON
// report. Anything it cannot read still fails the review.
func ParseOutput(b []byte) *Result {
	var report map[string]section
	if err := json.Unmarshal(bytes.TrimSpace(b), &report); err != nil {
		return &Result{}
	}

	groups := make([]string, 0, len(report))
	for g := range report {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, g := range groups {
		if reason := firstText(report[g].Error); reason != "" {
			return &Result{Reason: reason}
		}
	}

	for _, g := range groups {
		for _, name := range sortedKeys(report[g].Warn) {
			if f := report[g].Warn[name]; f.ManualReview {
				return &Result{Reason: f.Text}
			}
		}
	}

	return &Result{}
}

func firstText(findings map[string]finding) string {
	for _, name := range sortedKeys(findings) {
		if text := strings.TrimSpace(findings[name].Text); text != "" {
			return text
		}
	}
	return ""
}

func sortedKeys(m map[string]finding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
