// Package tui provides the interactive Bubble Tea dashboard for cbudget.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/cbudget/internal/analysis"
	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/reconcile"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// StateSource is the live project store the dashboard renders.
type StateSource interface {
	State() reconcile.SyncState
	Subscribe() (<-chan reconcile.SyncState, func())
}

// StateMsg carries a store state into the update loop.
type StateMsg struct {
	State reconcile.SyncState
}

// AnalysisMsg is sent when an analysis request completes.
type AnalysisMsg struct {
	Report analysis.Report
}

type feedClosedMsg struct{}

// Options configures the dashboard.
type Options struct {
	Config    config.Config
	Analyzer  *analysis.Analyzer // nil disables the analysis tab
	NeedSetup bool
}

// App is the root Bubble Tea model.
type App struct {
	// Data
	sub        <-chan reconcile.SyncState
	cancel     func()
	state      reconcile.SyncState
	summary    model.PortfolioSummary
	filtered   []model.Project
	overBilled []model.Project
	feedClosed bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	spinner   spinner.Model
	ticking   bool

	// Per-tab state
	proj projectsState
	ai   analysisState

	// First-run setup (huh form)
	cfg       config.Config
	setupForm *huh.Form
	setupVals *setupValues
	needSetup bool
	note      string
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	chromeHeight     = 3 // header + tab bar + status bar
	minContentHeight = 5
	analysisTimeout  = 2 * time.Minute
)

const (
	tabOverview = iota
	tabProjects
	tabAnalysis
)

// NewApp creates the dashboard model and subscribes to src. Call Close when
// the program exits.
func NewApp(src StateSource, opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	sub, cancel := src.Subscribe()
	a := App{
		sub:       sub,
		cancel:    cancel,
		spinner:   sp,
		ticking:   true,
		proj:      newProjectsState(),
		ai:        analysisState{analyzer: opts.Analyzer},
		cfg:       opts.Config,
		needSetup: opts.NeedSetup,
	}
	if a.needSetup {
		a.setupVals = newSetupValues(opts.Config)
		a.setupForm = newSetupForm(a.setupVals)
	}
	a.applyState(src.State())
	return a
}

// Close stops the store subscription.
func (a App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		waitForState(a.sub),
		a.spinner.Tick,
	}
	if a.setupForm != nil {
		cmds = append(cmds, a.setupForm.Init())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ai.render(a.contentWidth())
		if a.setupForm != nil {
			return a.updateSetupForm(msg)
		}
		return a, nil

	case StateMsg:
		a.applyState(msg.State)
		return a, tea.Batch(waitForState(a.sub), a.ensureTicking())

	case feedClosedMsg:
		a.feedClosed = true
		return a, nil

	case AnalysisMsg:
		a.ai.finish(msg.Report, a.contentWidth())
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			a.ticking = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	switch msg := msg.(type) {
	case tea.MouseMsg:
		return a.updateMouse(msg)
	case tea.KeyMsg:
		return a.updateKey(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if a.proj.searching {
		return a.updateSearch(msg)
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "?":
		a.showHelp = true
		return a, nil
	case "tab", "right":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	case "shift+tab", "left":
		a.activeTab = (a.activeTab + len(components.Tabs) - 1) % len(components.Tabs)
		return a, nil
	case "/":
		a.activeTab = tabProjects
		return a, a.proj.startSearch()
	case "esc":
		if a.proj.query != "" {
			a.proj.query = ""
			a.proj.input.SetValue("")
			a.recompute()
		}
		return a, nil
	}

	if len(msg.Runes) == 1 {
		if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
			a.activeTab = idx
			return a, nil
		}
	}

	switch a.activeTab {
	case tabProjects:
		a.proj.move(key, len(a.filtered), a.pageSize())
	case tabAnalysis:
		switch key {
		case "r", "enter":
			return a.startAnalysis()
		default:
			a.ai.scroll(key, a.pageSize())
		}
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if a.activeTab == tabProjects {
			a.proj.move("up", len(a.filtered), a.pageSize())
		} else if a.activeTab == tabAnalysis {
			a.ai.scroll("up", a.pageSize())
		}
	case tea.MouseButtonWheelDown:
		if a.activeTab == tabProjects {
			a.proj.move("down", len(a.filtered), a.pageSize())
		} else if a.activeTab == tabAnalysis {
			a.ai.scroll("down", a.pageSize())
		}
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 1 {
			if idx := a.tabAtX(msg.X); idx >= 0 {
				a.activeTab = idx
			}
		}
	}
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.cfg = a.setupVals.apply(a.cfg)
		theme.SetActive(a.cfg.Appearance.Theme)
		if err := config.Save(a.cfg); err != nil {
			a.note = fmt.Sprintf("設定未儲存：%s", err)
		} else {
			a.note = "設定已儲存，遠端設定將於重新啟動後生效"
		}
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a *App) applyState(st reconcile.SyncState) {
	a.state = st
	a.summary = pipeline.Aggregate(st.Projects)
	a.overBilled = pipeline.OverBilled(st.Projects)
	a.recompute()
}

// recompute applies the search filter and keeps the cursor in range.
func (a *App) recompute() {
	a.filtered = pipeline.FilterByName(a.state.Projects, a.proj.query)
	a.proj.clamp(len(a.filtered))
}

func (a App) startAnalysis() (tea.Model, tea.Cmd) {
	if !a.ai.start() {
		return a, nil
	}
	cmd := analyzeCmd(a.ai.analyzer, a.state.Projects)
	return a, tea.Batch(cmd, a.ensureTicking())
}

// busy reports whether something worth a spinner is in progress.
func (a App) busy() bool {
	switch a.state.Status {
	case reconcile.Uninitialized, reconcile.Connecting, reconcile.Saving:
		return true
	}
	return a.state.Writing || a.ai.running
}

// ensureTicking restarts the spinner loop if it stopped and work resumed.
func (a *App) ensureTicking() tea.Cmd {
	if a.ticking || !a.busy() {
		return nil
	}
	a.ticking = true
	return a.spinner.Tick
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) contentHeight() int {
	return max(a.height-chromeHeight, minContentHeight)
}

func (a App) pageSize() int {
	return max(a.contentHeight()/2, 1)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.needSetup && a.setupForm != nil {
		return a.viewSetup()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  終端機寬度不足 (%d 欄)\n\n  cbudget 至少需要 %d 欄。\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewSetup() string {
	t := theme.Active
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  ◈ cbudget 初始設定"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("  設定將儲存至 " + config.Path()))
	b.WriteString("\n\n")
	b.WriteString(a.setupForm.View())
	return b.String()
}

func (a App) viewHelp() string {
	t := theme.Active
	cw := a.contentWidth()

	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	bindings := []struct{ key, desc string }{
		{"o / p / a", "切換 總覽 / 專案 / AI 分析"},
		{"tab / ←→", "切換分頁"},
		{"/", "搜尋工程名稱"},
		{"esc", "清除搜尋"},
		{"j / k", "上下移動"},
		{"g / G", "跳至頂端 / 底端"},
		{"ctrl+d / ctrl+u", "翻半頁"},
		{"r", "執行 AI 分析"},
		{"q", "離開"},
	}

	var b strings.Builder
	for i, kb := range bindings {
		b.WriteString(keyStyle.Render(components.FitWidth(kb.key, 18)))
		b.WriteString(descStyle.Render(kb.desc))
		if i < len(bindings)-1 {
			b.WriteString("\n")
		}
	}

	card := components.FocusedCard("快捷鍵", b.String(), min(cw, 60))
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	cw := a.contentWidth()
	h := a.contentHeight()

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Background).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Background)
	header := titleStyle.Render(" ◈ cbudget") + subStyle.Render(" · 工程預算監控")
	if a.note != "" {
		header += subStyle.Render("  " + a.note)
	}

	var content string
	switch a.activeTab {
	case tabProjects:
		content = a.renderProjectsTab(cw, h)
	case tabAnalysis:
		content = a.renderAnalysisTab(cw, h)
	default:
		content = a.renderOverviewTab(cw, h)
	}
	content = padHeight(truncateHeight(content, h), h)

	var b strings.Builder
	b.WriteString(fillLinesWithBackground(header, cw, t.Background))
	b.WriteString("\n")
	b.WriteString(components.RenderTabBar(a.activeTab, cw))
	b.WriteString("\n")
	b.WriteString(fillLinesWithBackground(content, cw, t.Background))
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar(cw))
	return b.String()
}

func (a App) renderStatusBar(w int) string {
	label := a.state.Label()
	if a.busy() {
		label = a.spinner.View() + " " + label
	}
	if a.feedClosed {
		label += " (已停止)"
	}
	age := ""
	if !a.state.UpdatedAt.IsZero() {
		age = "更新 " + a.state.UpdatedAt.Local().Format("15:04:05")
	}
	return components.RenderStatusBar(w, label, statusTone(a.state), age)
}

// statusTone colors the sync status.
func statusTone(st reconcile.SyncState) theme.Tone {
	switch {
	case st.Status.Failed():
		return theme.ToneBad
	case st.Status == reconcile.Synced || st.Status == reconcile.Saved:
		return theme.ToneGood
	case st.Status == reconcile.Offline || st.Status == reconcile.OfflineCached || st.Status == reconcile.SavedLocal:
		return theme.ToneWarn
	default:
		return theme.ToneBusy
	}
}

// waitForState blocks until the store publishes the next state.
func waitForState(sub <-chan reconcile.SyncState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-sub
		if !ok {
			return feedClosedMsg{}
		}
		return StateMsg{State: st}
	}
}

// analyzeCmd runs an analysis request off the update loop.
func analyzeCmd(az *analysis.Analyzer, projects []model.Project) tea.Cmd {
	list := model.Clone(projects)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
		defer cancel()
		return AnalysisMsg{Report: az.Analyze(ctx, list)}
	}
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes match RenderTabBar: tabs separated by one column.
func (a App) tabAtX(x int) int {
	pos := 0
	for i := range components.Tabs {
		tabW := components.TabVisualWidth(i, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1
	}
	return -1
}

// ─── Layout helpers ─────────────────────────────────────────────

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		placed := lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
		result.WriteString(placed)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}
