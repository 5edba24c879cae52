package styles

import (
	"fmt"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/links"
	"github.com/jv-vogler/cm42-central/internal/models"
)

var (
	// Card styles
	CardStyle lipgloss.Style
	CardWidth = 80

	// Text styles
	TitleStyle    lipgloss.Style
	SubtitleStyle lipgloss.Style
	LabelStyle    lipgloss.Style // For field labels like "Type:", "State:"
	ValueStyle    lipgloss.Style // For field values
	SectionStyle  lipgloss.Style // For section headers like "Description", "Labels"
	ColumnStyle   lipgloss.Style // Board column headers

	// Status styles
	DelayedStyle lipgloss.Style
	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style

	palette config.ColorScheme
)

// Init initializes all CLI styles with the given color scheme
func Init(colors config.ColorScheme) {
	palette = colors

	CardStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colors.Accent)).
		Padding(1, 2).
		Width(CardWidth)

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.Title))

	SubtitleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Subtle))

	LabelStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.Accent))

	ValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Normal))

	SectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Accent)).
		Bold(true).
		MarginTop(1)

	ColumnStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.ColumnBorder)).
		Underline(true)

	DelayedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.Delayed)).
		Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.InfoFg))

	ErrorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.ErrorFg))

	WarningStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.WarningFg))
}

func init() {
	Init(config.DefaultColorScheme())
}

// ═══════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ═══════════════════════════════════════════════════════════════════

// ColoredText renders text with a hex color
func ColoredText(text, hexColor string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(hexColor)).
		Render(text)
}

// BoldColoredText renders bold text with a hex color
func BoldColoredText(text, hexColor string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(hexColor)).
		Render(text)
}

// TypeColor returns the badge color of a story type.
func TypeColor(t models.StoryType) string {
	switch t {
	case models.StoryTypeFeature:
		return palette.Feature
	case models.StoryTypeBug:
		return palette.Bug
	case models.StoryTypeRelease:
		return palette.Release
	default:
		return palette.Chore
	}
}

// RenderTypeBadge renders the story type in its color.
func RenderTypeBadge(t models.StoryType) string {
	return BoldColoredText(string(t), TypeColor(t))
}

// RenderLabelChip renders a label as "[name]"
func RenderLabelChip(label string) string {
	return BoldColoredText("["+label+"]", palette.Accent)
}

// RenderLink renders a resolved reference.
// Format: "• #12 - Title (state)" or "• #12 - missing"
func RenderLink(l links.Link) string {
	if l.Missing {
		return ColoredText(fmt.Sprintf("• %s - missing", l.TargetID), palette.Subtle)
	}
	text := fmt.Sprintf("• %s - %s", l.TargetID, l.Title)
	if l.State != "" {
		text += " (" + string(l.State) + ")"
	}
	return ColoredText(text, palette.Normal)
}

// RenderStoryLine renders the one-line board form of a story.
func RenderStoryLine(s models.Story, delayed bool) string {
	var b strings.Builder
	b.WriteString(SubtitleStyle.Render(s.ID.String()))
	b.WriteString(" ")
	b.WriteString(RenderTypeBadge(s.Type))
	if s.Estimate != nil {
		b.WriteString(SubtitleStyle.Render(fmt.Sprintf(" (%d)", *s.Estimate)))
	}
	b.WriteString(" ")
	b.WriteString(ValueStyle.Render(s.Title))
	if s.State != "" {
		b.WriteString(SubtitleStyle.Render(" [" + string(s.State) + "]"))
	}
	if delayed {
		b.WriteString(DelayedStyle.Render("DELAYED"))
	}
	return b.String()
}

// RenderCard wraps content in a styled card border
func RenderCard(content string) string {
	return CardStyle.Render(content)
}

// Glamour renderers are expensive to build; cache them by width
var rendererCache sync.Map // map[int]*glamour.TermRenderer

func getRenderer(width int) (*glamour.TermRenderer, error) {
	if cached, ok := rendererCache.Load(width); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	rendererCache.Store(width, renderer)
	return renderer, nil
}

// RenderMarkdown renders a story description. The raw text comes back when
// rendering fails.
func RenderMarkdown(markdown string, width int) string {
	if strings.TrimSpace(markdown) == "" {
		return SubtitleStyle.Italic(true).Render("No description")
	}
	renderer, err := getRenderer(width)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSpace(rendered)
}
