package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// projectsState holds the projects tab state.
type projectsState struct {
	cursor    int
	offset    int // first visible row
	searching bool
	input     textinput.Model
	query     string
}

func newProjectsState() projectsState {
	ti := textinput.New()
	ti.Placeholder = "工程名稱"
	ti.Prompt = "搜尋: "
	ti.CharLimit = 64
	ti.Width = 30
	return projectsState{input: ti}
}

func (ps *projectsState) startSearch() tea.Cmd {
	ps.searching = true
	ps.input.SetValue(ps.query)
	ps.input.CursorEnd()
	return ps.input.Focus()
}

func (ps *projectsState) clamp(n int) {
	if ps.cursor >= n {
		ps.cursor = n - 1
	}
	if ps.cursor < 0 {
		ps.cursor = 0
	}
	if ps.offset > ps.cursor {
		ps.offset = ps.cursor
	}
}

func (ps *projectsState) move(key string, n, page int) {
	switch key {
	case "j", "down":
		ps.cursor++
	case "k", "up":
		ps.cursor--
	case "g", "home":
		ps.cursor = 0
	case "G", "end":
		ps.cursor = n - 1
	case "ctrl+d":
		ps.cursor += page
	case "ctrl+u":
		ps.cursor -= page
	}
	ps.clamp(n)
}

// updateSearch handles key events while the search box has focus. Enter
// applies the query, esc abandons the edit.
func (a App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.proj.query = strings.TrimSpace(a.proj.input.Value())
		a.proj.searching = false
		a.proj.input.Blur()
		a.proj.cursor = 0
		a.proj.offset = 0
		a.recompute()
		return a, nil
	case "esc":
		a.proj.searching = false
		a.proj.input.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.proj.input, cmd = a.proj.input.Update(msg)
	return a, cmd
}

// projectColumn is one numeric column of the projects table.
type projectColumn struct {
	title   string
	width   int
	compact bool // shown in compact layout
	value   func(p model.Project, m model.ProjectMetrics) string
}

var projectColumns = []projectColumn{
	{"面積", 10, false, func(p model.Project, _ model.ProjectMetrics) string { return cli.FormatAmount(p.Area) }},
	{"原始預算", 14, false, func(p model.Project, _ model.ProjectMetrics) string { return cli.FormatAmount(p.OriginalBudget) }},
	{"執行預算", 14, true, func(p model.Project, _ model.ProjectMetrics) string { return cli.FormatAmount(p.ExecBudget) }},
	{"已請款", 14, true, func(p model.Project, _ model.ProjectMetrics) string { return cli.FormatAmount(p.Paid) }},
	{"差異率", 9, true, func(_ model.Project, m model.ProjectMetrics) string { return cli.FormatSignedPercent(m.VarianceRate) }},
	{"請款比例", 9, true, func(_ model.Project, m model.ProjectMetrics) string { return cli.FormatPercent(m.BillRatio) }},
}

func (a App) visibleColumns() []projectColumn {
	if !a.isCompactLayout() {
		return projectColumns
	}
	var cols []projectColumn
	for _, c := range projectColumns {
		if c.compact {
			cols = append(cols, c)
		}
	}
	return cols
}

func (a App) renderProjectsTab(cw, h int) string {
	t := theme.Active
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var search string
	switch {
	case a.proj.searching:
		search = a.proj.input.View()
	case a.proj.query != "":
		search = mutedStyle.Render(fmt.Sprintf("搜尋: %s (%d 筆)  [esc] 清除", a.proj.query, len(a.filtered)))
	default:
		search = mutedStyle.Render(fmt.Sprintf("共 %d 筆  [/] 搜尋", len(a.filtered)))
	}

	if len(a.filtered) == 0 {
		msg := "尚無專案資料，請使用 cbudget import <檔案> 匯入"
		if a.proj.query != "" {
			msg = "沒有符合搜尋條件的專案"
		}
		return components.ContentCard("專案列表", search+"\n\n"+mutedStyle.Render(msg), cw)
	}

	detail := a.renderProjectDetail(a.filtered[a.proj.cursor], cw)
	// card border (2) + title + search line + table header (2)
	visible := max(h-lipgloss.Height(detail)-6, 3)

	offset := a.proj.offset
	if a.proj.cursor < offset {
		offset = a.proj.cursor
	}
	if a.proj.cursor >= offset+visible {
		offset = a.proj.cursor - visible + 1
	}

	table := a.renderProjectTable(components.CardInnerWidth(cw), offset, visible)
	list := components.ContentCard("專案列表", search+"\n"+table, cw)
	return list + "\n" + detail
}

func (a App) renderProjectTable(inner, offset, visible int) string {
	t := theme.Active
	cols := a.visibleColumns()

	numericW := 0
	for _, c := range cols {
		numericW += c.width + 1
	}
	nameW := max(inner-numericW, 12)

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selectedStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceHover).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	var head strings.Builder
	head.WriteString(components.FitWidth("工程名稱", nameW))
	for _, c := range cols {
		head.WriteString(" " + padLeft(c.title, c.width))
	}
	b.WriteString(headerStyle.Render(head.String()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", nameW+numericW)))

	end := min(offset+visible, len(a.filtered))
	for i := offset; i < end; i++ {
		p := a.filtered[i]
		m := pipeline.ProjectMetricsFor(p)

		var line strings.Builder
		line.WriteString(components.FitWidth(p.Name, nameW))
		for _, c := range cols {
			line.WriteString(" " + padLeft(c.value(p, m), c.width))
		}

		b.WriteString("\n")
		switch {
		case i == a.proj.cursor:
			b.WriteString(selectedStyle.Render(line.String()))
		case m.OverBilled():
			b.WriteString(warnStyle.Render(line.String()))
		default:
			b.WriteString(rowStyle.Render(line.String()))
		}
	}
	return b.String()
}

func (a App) renderProjectDetail(p model.Project, cw int) string {
	t := theme.Active
	m := pipeline.ProjectMetricsFor(p)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	varianceStyle := valueStyle
	if m.Variance > 0 {
		varianceStyle = lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	}

	pair := func(label, value string, style lipgloss.Style) string {
		return labelStyle.Render(label+" ") + style.Render(value)
	}
	sep := labelStyle.Render("   ")

	lines := []string{
		pair("原始單價", cli.FormatAmount(m.OriginalUnitCost), valueStyle) + sep +
			pair("執行單價", cli.FormatAmount(m.ExecUnitCost), valueStyle) + sep +
			pair("請款單價", cli.FormatAmount(m.PaidUnitCost), valueStyle),
		pair("預算差異", cli.FormatSignedAmount(m.Variance), varianceStyle) + sep +
			pair("差異單價", cli.FormatSignedAmount(m.VarianceUnitCost), varianceStyle) + sep +
			pair("差異率", cli.FormatSignedPercent(m.VarianceRate), varianceStyle),
		components.RatioBar("請款比例", m.BillRatio, 8, max(components.CardInnerWidth(cw)-20, 10)),
	}
	title := p.Name
	if m.OverBilled() {
		title += "  ⚠ 超請款"
	}
	return components.FocusedCard(title, strings.Join(lines, "\n"), cw)
}

func padLeft(s string, w int) string {
	if gap := w - lipgloss.Width(s); gap > 0 {
		return strings.Repeat(" ", gap) + s
	}
	return s
}
