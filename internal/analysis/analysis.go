// Package analysis asks a language model for a management review of the
// current project list.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/theirongolddev/cbudget/internal/model"
)

// FailurePlaceholder is shown in place of an analysis that could not be produced.
const FailurePlaceholder = "分析失敗，請檢查 API Key 或網路連線。"

var (
	// ErrNoProjects is returned when there is nothing to analyze.
	ErrNoProjects = errors.New("analysis: no projects")
	// ErrAnalysisFailed wraps summarizer errors and empty replies.
	ErrAnalysisFailed = errors.New("analysis: failed")
	// ErrBusy is returned when another request is already in flight.
	ErrBusy = errors.New("analysis: already running")
)

// Summarizer turns a prompt into free text.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Report is the outcome of one analysis request.
type Report struct {
	Text   string
	Failed bool
	Err    error
}

// BuildPrompt embeds the project list in the review prompt.
func BuildPrompt(projects []model.Project) (string, error) {
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return "", err
	}
	return "分析以下工程數據：" + string(data) + "。請識別異常項目、計算健康度並提供 3 點專業管理建議（繁體中文）。", nil
}

// Analyzer runs analysis requests against a Summarizer.
type Analyzer struct {
	summarizer Summarizer
	log        *slog.Logger
	running    atomic.Bool
}

// NewAnalyzer returns an analyzer. A nil logger discards output.
func NewAnalyzer(s Summarizer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{summarizer: s, log: logger}
}

// Running reports whether a request is in flight.
func (a *Analyzer) Running() bool {
	return a.running.Load()
}

// Analyze requests a review of projects. Any failure, including an empty
// reply, yields a Failed report carrying FailurePlaceholder. Only one request
// runs at a time; a concurrent call returns ErrBusy without asking the model.
func (a *Analyzer) Analyze(ctx context.Context, projects []model.Project) Report {
	if len(projects) == 0 {
		return Report{Err: ErrNoProjects}
	}

	if !a.running.CompareAndSwap(false, true) {
		return Report{Err: ErrBusy}
	}
	defer a.running.Store(false)

	prompt, err := BuildPrompt(projects)
	if err != nil {
		return a.fail(fmt.Errorf("%w: building prompt: %w", ErrAnalysisFailed, err))
	}

	text, err := a.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return a.fail(fmt.Errorf("%w: %w", ErrAnalysisFailed, err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return a.fail(fmt.Errorf("%w: empty reply", ErrAnalysisFailed))
	}
	return Report{Text: text}
}

func (a *Analyzer) fail(err error) Report {
	a.log.Warn("analysis failed", "err", err)
	return Report{Text: FailurePlaceholder, Failed: true, Err: err}
}
