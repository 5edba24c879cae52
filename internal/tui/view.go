package tui

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/jv-vogler/cm42-central/internal/cli/styles"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

const (
	minColumnWidth    = 24
	hiddenColumnWidth = 6
)

// View renders the current state of the viewer.
// Implements tea.Model interface.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true // Use alternate screen buffer

	// Wait for terminal size to be initialized
	if m.width == 0 {
		view.Content = "Loading..."
		return view
	}

	var body string
	switch {
	case m.err != nil:
		body = styles.ErrorStyle.Render("Failed to load board: " + m.err.Error())
	case m.showHelp:
		body = m.renderHelp()
	case m.showStory:
		body = m.renderStoryDetail()
	default:
		body = m.renderBoard()
	}

	view.Content = lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatusBar())
	return view
}

func (m *Model) renderHeader() string {
	return styles.TitleStyle.Render(fmt.Sprintf("[%d] %s", m.project.ID, m.project.Name))
}

// renderBoard lays the columns out side by side. Hidden columns collapse to a
// stub so they can still be selected and shown again.
func (m *Model) renderBoard() string {
	names := m.columns()
	partition := m.partition()

	visible := len(m.visibility.Visible(names))
	width := minColumnWidth
	if visible > 0 {
		width = max((m.width-hiddenColumnWidth*(len(names)-visible))/visible-2, minColumnWidth)
	}
	height := max(m.height-4, 5)

	rendered := make([]string, 0, len(names))
	for i, name := range names {
		selected := i == m.selectedColumn
		if m.visibility.Hidden(name) {
			rendered = append(rendered, RenderHiddenColumn(name, len(partition[name]), selected, height))
			continue
		}
		selectedStory := -1
		if selected {
			selectedStory = m.selectedStory
		}
		rendered = append(rendered, RenderColumn(name, partition[name], selectedStory, selected, width, height, m.projected))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// RenderColumn renders a column with its title and stories
//
// Layout:
//
//	{column name} ({count})
//	{story line}
//	{story line}
//	...
//	▼ n more (when the stories do not fit)
//
// Releases due before projected are flagged DELAYED.
func RenderColumn(name column.Name, stories []models.Story, selectedStory int, selected bool, width, height int, projected time.Time) string {
	var content strings.Builder
	content.WriteString(styles.ColumnStyle.Render(fmt.Sprintf("%s (%d)", name.Title(), len(stories))))
	content.WriteString("\n")

	if len(stories) == 0 {
		content.WriteString(styles.SubtitleStyle.Italic(true).Render("No stories"))
	}

	// header + border + overflow indicator
	fits := max(height-4, 1)
	offset := 0
	if selectedStory >= fits {
		offset = selectedStory - fits + 1
	}
	end := min(offset+fits, len(stories))
	for i := offset; i < end; i++ {
		delayed := workflow.ReleaseDelayed(stories[i], projected)
		line := styles.RenderStoryLine(stories[i], delayed)
		if i == selectedStory {
			line = lipgloss.NewStyle().Reverse(true).Render(plainLine(stories[i], delayed))
		}
		content.WriteString(line)
		content.WriteString("\n")
	}
	if rest := len(stories) - end; rest > 0 {
		content.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("▼ %d more", rest)))
	}

	return columnFrame(selected).Width(width).Render(strings.TrimRight(content.String(), "\n"))
}

// RenderHiddenColumn renders the collapsed stub of a hidden column.
func RenderHiddenColumn(name column.Name, count int, selected bool, height int) string {
	label := fmt.Sprintf("%s\n%d", abbreviate(name), count)
	return columnFrame(selected).Width(hiddenColumnWidth).Height(min(height, 4)).Render(label)
}

func columnFrame(selected bool) lipgloss.Style {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if selected {
		return style.BorderForeground(styles.TitleStyle.GetForeground())
	}
	return style.BorderForeground(styles.SubtitleStyle.GetForeground())
}

func abbreviate(name column.Name) string {
	title := name.Title()
	if len(title) > 3 {
		return title[:3]
	}
	return title
}

// plainLine is the unstyled board line drawn under the selection highlight.
func plainLine(s models.Story, delayed bool) string {
	line := s.ID.String() + " " + string(s.Type)
	if s.Estimate != nil {
		line += fmt.Sprintf(" (%d)", *s.Estimate)
	}
	line += " " + s.Title
	if s.State != "" {
		line += " [" + string(s.State) + "]"
	}
	if delayed {
		line += " DELAYED"
	}
	return line
}

func (m *Model) renderStoryDetail() string {
	s, ok := m.currentStory()
	if !ok {
		return ""
	}

	var content strings.Builder
	content.WriteString(styles.TitleStyle.Render(s.ID.String() + ": " + s.Title))
	content.WriteString("\n")
	content.WriteString(styles.RenderTypeBadge(s.Type))
	content.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("  version %d", s.Version)))
	content.WriteString("\n\n")
	if s.State != "" {
		content.WriteString(styles.LabelStyle.Render("State: ") + styles.ValueStyle.Render(string(s.State)) + "\n")
	}
	if s.Estimate != nil {
		content.WriteString(styles.LabelStyle.Render("Estimate: ") + styles.ValueStyle.Render(fmt.Sprintf("%d", *s.Estimate)) + "\n")
	}
	if len(s.Labels) > 0 {
		chips := make([]string, 0, len(s.Labels))
		for _, l := range s.Labels {
			chips = append(chips, styles.RenderLabelChip(l))
		}
		content.WriteString(styles.LabelStyle.Render("Labels: ") + strings.Join(chips, " ") + "\n")
	}
	if workflow.ReleaseDelayed(s, m.projected) {
		content.WriteString(styles.DelayedStyle.Render("DELAYED") + "\n")
	}
	content.WriteString(styles.SectionStyle.Render("Description"))
	content.WriteString("\n")
	content.WriteString(styles.RenderMarkdown(s.Description, max(min(m.width-8, 100), 20)))

	if actions := m.renderActions(s); actions != "" {
		content.WriteString("\n")
		content.WriteString(actions)
	}
	if refs := m.renderLinks(s.ID); refs != "" {
		content.WriteString("\n")
		content.WriteString(refs)
	}

	return styles.RenderCard(content.String())
}

// renderActions lists what the digit keys do for s.
func (m *Model) renderActions(s models.Story) string {
	if m.writer == nil || !m.actor.CanWrite {
		return ""
	}
	set := workflow.ActionsForStory(s, m.project.PointScale)
	var choices []string
	switch set.Kind {
	case workflow.Transitions:
		for i, a := range set.Actions {
			choices = append(choices, fmt.Sprintf("%d %s", i+1, a))
		}
	case workflow.PointSelection:
		for i, p := range set.Points {
			choices = append(choices, fmt.Sprintf("%d %dpt", i+1, p))
		}
	}
	if len(choices) == 0 {
		return ""
	}
	return styles.SectionStyle.Render("Actions") + "\n" + strings.Join(choices, "  ")
}

// renderLinks shows the resolved references of story id once they arrived.
func (m *Model) renderLinks(id types.StoryID) string {
	if m.linksFor != id {
		return ""
	}
	if m.linksErr != nil {
		return styles.SectionStyle.Render("References") + "\n" + styles.ErrorStyle.Render(m.linksErr.Error())
	}
	if len(m.links) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.links))
	for _, l := range m.links {
		lines = append(lines, styles.RenderLink(l))
	}
	return styles.SectionStyle.Render("References") + "\n" + strings.Join(lines, "\n")
}

func (m *Model) renderHelp() string {
	var content strings.Builder
	content.WriteString(styles.SectionStyle.Render("Keys"))
	content.WriteString("\n")
	for _, b := range m.keys.bindings() {
		h := b.Help()
		content.WriteString(fmt.Sprintf("%s  %s\n", styles.LabelStyle.Render(fmt.Sprintf("%-8s", h.Key)), h.Desc))
	}
	return styles.RenderCard(strings.TrimRight(content.String(), "\n"))
}

// renderStatusBar shows the connection, the replica's sequence and any notice.
func (m *Model) renderStatusBar() string {
	status := m.connection.String()
	switch m.connection {
	case Live:
		status = styles.SuccessStyle.Render("● " + status)
	case Lost:
		status = styles.ErrorStyle.Render("● " + status)
	default:
		status = styles.SubtitleStyle.Render("○ " + status)
	}

	parts := []string{status, styles.SubtitleStyle.Render(fmt.Sprintf("seq %d", m.board.LastSeq()))}
	if pending, gap := m.board.Gap(); gap {
		parts = append(parts, styles.WarningStyle.Render(fmt.Sprintf("waiting for %d", pending)))
	}
	if n := m.board.Pending(); n > 0 {
		parts = append(parts, styles.WarningStyle.Render(fmt.Sprintf("%d pending", n)))
	}
	if m.notice != "" {
		parts = append(parts, styles.WarningStyle.Render(m.notice))
	}
	parts = append(parts, styles.SubtitleStyle.Render(m.keys.Help.Help().Key+" help"))
	return strings.Join(parts, "  ")
}
