package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	cardWidth = 64
	// Two columns of padding on each side leave 60 for content.
	cardInnerWidth = cardWidth - 4
	// Lists longer than this are summarized.
	maxCardItems = 12
)

type bubbleTeaPrompter struct {
	in       io.Reader
	out      io.Writer
	project  string
	theme    cardTheme
	version  string
	fallback confirmPrompter
}

func newBubbleTeaPrompter(in io.Reader, out io.Writer, projectDir string) *bubbleTeaPrompter {
	return &bubbleTeaPrompter{
		in:       in,
		out:      out,
		project:  projectDir,
		theme:    newCardTheme(supportsColor(out)),
		version:  versionTag(),
		fallback: newTerminalPrompter(in, out),
	}
}

func (p *bubbleTeaPrompter) Confirm(ctx context.Context, c Confirmation) (bool, error) {
	restore := normalizeTERMForBubbleTea()
	defer restore()

	model := newConfirmModel(c, p.project, p.version, p.theme)
	prog := tea.NewProgram(model, tea.WithInput(p.in), tea.WithOutput(p.out), tea.WithContext(ctx))

	final, err := prog.Run()
	if err != nil {
		return p.fallback.Confirm(ctx, c)
	}
	m, ok := final.(*confirmModel)
	if !ok {
		return p.fallback.Confirm(ctx, c)
	}
	return m.confirmed, nil
}

type cardTheme struct {
	color        bool
	accentColor  lipgloss.Color
	title        lipgloss.Style
	subtitle     lipgloss.Style
	label        lipgloss.Style
	value        lipgloss.Style
	item         lipgloss.Style
	option       lipgloss.Style
	optionActive lipgloss.Style
	help         lipgloss.Style
	key          lipgloss.Style
}

func newCardTheme(color bool) cardTheme {
	if !color {
		return cardTheme{
			title:        lipgloss.NewStyle().Bold(true),
			subtitle:     lipgloss.NewStyle().Bold(true),
			label:        lipgloss.NewStyle().Faint(true),
			value:        lipgloss.NewStyle(),
			item:         lipgloss.NewStyle().PaddingLeft(2),
			option:       lipgloss.NewStyle().PaddingLeft(2),
			optionActive: lipgloss.NewStyle().PaddingLeft(2).Bold(true),
			help:         lipgloss.NewStyle().Faint(true),
			key:          lipgloss.NewStyle().Bold(true),
		}
	}

	accent := lipgloss.Color("#4fb3ff")
	muted := lipgloss.Color("#9fb3c8")

	return cardTheme{
		color:        true,
		accentColor:  accent,
		title:        lipgloss.NewStyle().Foreground(accent).Bold(true),
		subtitle:     lipgloss.NewStyle().Foreground(accent).Faint(true),
		label:        lipgloss.NewStyle().Faint(true),
		value:        lipgloss.NewStyle().Foreground(accent).Bold(true),
		item:         lipgloss.NewStyle().Foreground(muted).PaddingLeft(2),
		option:       lipgloss.NewStyle().PaddingLeft(2),
		optionActive: lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#0b1215")).Background(accent).Bold(true),
		help:         lipgloss.NewStyle().Faint(true),
		key:          lipgloss.NewStyle().Foreground(accent).Bold(true),
	}
}

type confirmModel struct {
	theme   cardTheme
	c       Confirmation
	project string
	version string

	// cursor 0 is "Remove", 1 is "Cancel".
	cursor    int
	confirmed bool

	shimmerColors []string
	shimmerPhase  int
}

func newConfirmModel(c Confirmation, projectDir, version string, theme cardTheme) *confirmModel {
	project := strings.TrimSpace(filepath.Base(projectDir))
	if project == "" || project == "." || project == string(filepath.Separator) {
		project = projectDir
	}
	var colors []string
	if theme.color {
		colors = []string{"#0EA5E9", "#22D3EE", "#A5F3FC"}
	}
	return &confirmModel{
		theme:         theme,
		c:             c,
		project:       project,
		version:       version,
		cursor:        1,
		shimmerColors: colors,
	}
}

func (m *confirmModel) Init() tea.Cmd {
	if len(m.shimmerColors) > 0 {
		return m.nextShimmerTick()
	}
	return nil
}

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch strings.ToLower(msg.String()) {
		case "ctrl+c", "esc", "n", "q":
			m.confirmed = false
			return m, tea.Quit
		case "y":
			m.confirmed = true
			return m, tea.Quit
		case "up", "k", "left", "h":
			m.cursor = 0
		case "down", "j", "right", "l", "tab":
			m.cursor = 1
		case "enter":
			m.confirmed = m.cursor == 0
			return m, tea.Quit
		}
	case shimmerMsg:
		if len(m.shimmerColors) > 0 {
			m.shimmerPhase = (m.shimmerPhase + 1) % len([]rune(m.titleText()))
			return m, m.nextShimmerTick()
		}
	}
	return m, nil
}

func (m *confirmModel) View() string {
	body := []string{
		fmt.Sprintf("%s %s", m.theme.label.Render("Project :"), m.theme.value.Render(m.project)),
		"",
	}
	items := m.c.Items
	if len(items) > maxCardItems {
		more := len(items) - maxCardItems
		items = append(append([]string(nil), items[:maxCardItems]...), fmt.Sprintf("… and %d more", more))
	}
	for _, item := range items {
		body = append(body, m.theme.item.Render(truncate(item, cardInnerWidth-2)))
	}
	body = append(body, "")

	for i, label := range []string{"Remove", "Cancel"} {
		line := fmt.Sprintf("%d. %s", i+1, label)
		if i == m.cursor {
			body = append(body, m.theme.optionActive.Render("  "+line+" "))
		} else {
			body = append(body, m.theme.option.Render("  "+line))
		}
	}
	help := fmt.Sprintf("Press %s to remove, %s or Esc to cancel.", m.theme.key.Render("y"), m.theme.key.Render("n"))
	body = append(body, "", m.theme.help.Render(help), "")

	center := lipgloss.NewStyle().Width(cardInnerWidth).Align(lipgloss.Center)
	content := lipgloss.JoinVertical(lipgloss.Left,
		center.Render(""),
		center.Render(m.renderTitle()),
		center.Render(m.theme.subtitle.Render(m.c.Title)),
		"",
		lipgloss.JoinVertical(lipgloss.Left, body...),
	)

	lines := strings.Split(content, "\n")
	card := make([]string, 0, len(lines)+2)
	card = append(card, m.borderLine("╭", "╮"))
	for _, line := range lines {
		card = append(card, m.contentLine(line))
	}
	card = append(card, m.borderLine("╰", "╯"))
	return "\n" + strings.Join(card, "\n") + "\n"
}

type shimmerMsg struct{}

func (m *confirmModel) nextShimmerTick() tea.Cmd {
	return tea.Tick(280*time.Millisecond, func(time.Time) tea.Msg {
		return shimmerMsg{}
	})
}

func (m *confirmModel) titleText() string {
	return fmt.Sprintf("bubble %s", m.version)
}

func (m *confirmModel) renderTitle() string {
	base := m.titleText()
	if len(m.shimmerColors) == 0 {
		return m.theme.title.Render(base)
	}
	runes := []rune(base)
	n := len(runes)
	styled := make([]string, n)
	lead := m.shimmerPhase % n
	for idx, color := range m.shimmerColors {
		pos := (lead + idx) % n
		styled[pos] = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(string(runes[pos]))
	}
	for i, r := range runes {
		if styled[i] == "" {
			styled[i] = m.theme.title.Render(string(r))
		}
	}
	return strings.Join(styled, "")
}

func (m *confirmModel) borderLine(left, right string) string {
	fill := strings.Repeat("─", cardWidth)
	if m.theme.color {
		style := lipgloss.NewStyle().Foreground(m.theme.accentColor)
		return style.Render(left + fill + right)
	}
	return left + fill + right
}

func (m *confirmModel) contentLine(inner string) string {
	if width := lipgloss.Width(inner); width < cardInnerWidth {
		inner += strings.Repeat(" ", cardInnerWidth-width)
	}
	border := "│"
	if m.theme.color {
		border = lipgloss.NewStyle().Foreground(m.theme.accentColor).Render("│")
	}
	return border + "  " + inner + "  " + border
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width || width < 2 {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func canUseBubbleTea(in io.Reader, out io.Writer) bool {
	type fd interface {
		Fd() uintptr
	}
	_, okIn := in.(fd)
	_, okOut := out.(fd)
	return okIn && okOut
}
