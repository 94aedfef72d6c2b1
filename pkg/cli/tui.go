package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme for terminal frames.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme matches the rest of the CLI's accent color.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00b4d8"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the lipgloss styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Status lipgloss.Style
}

// NewStyles derives frame styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Status: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is one labeled region of a frame, such as a session
// transcript. Content is read at render time so the same frame can be
// re-rendered as the session progresses.
type Section struct {
	Label   string
	Content func() []string
}

// Frame is a bordered terminal box with a title, a status tag and
// labeled sections. The stream command renders one as its session
// summary.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
}

// Render draws the frame at the given size. Section content is
// tail-truncated to fit; overlong lines are ellipsized.
func (f Frame) Render(width, height int) string {
	if width < 4 || height < 4 {
		return ""
	}

	border := f.Styles.Border
	inner := width - 4

	var b strings.Builder
	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	writeLine(border.Render("╭" + strings.Repeat("─", width-2) + "╮"))

	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Status.Render("[" + f.Status + "]")
	gap := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	writeLine(border.Render("│") + " " + title + " " + status + strings.Repeat(" ", gap) + " " + border.Render("│"))
	writeLine(border.Render("│") + strings.Repeat(" ", width-2) + border.Render("│"))

	// Remaining rows split evenly across sections.
	sections := max(len(f.Sections), 1)
	rows := max((height-4-sections)/sections, 1)
	for _, sec := range f.Sections {
		f.renderSection(&b, sec, rows, width, inner)
	}

	b.WriteString(border.Render("╰" + strings.Repeat("─", width-2) + "╯"))
	return b.String()
}

func (f Frame) renderSection(b *strings.Builder, sec Section, rows, width, inner int) {
	border := f.Styles.Border
	label := f.Styles.Label.Render(sec.Label)
	fill := max(0, width-3-lipgloss.Width(label))
	b.WriteString(border.Render("├─") + label + border.Render(strings.Repeat("─", fill)+"┤"))
	b.WriteByte('\n')

	content := sec.Content()
	if len(content) > rows {
		content = content[len(content)-rows:]
	}
	for i := range rows {
		var text string
		if i < len(content) {
			text = content[i]
		}
		if inner > 1 && lipgloss.Width(text) > inner {
			text = clipToWidth(text, inner-1) + "…"
		}
		pad := max(0, inner-lipgloss.Width(text))
		b.WriteString(border.Render("│") + " " + text + strings.Repeat(" ", pad) + " " + border.Render("│"))
		b.WriteByte('\n')
	}
}

// clipToWidth cuts a string at the given display width, keeping
// multi-byte runes intact.
func clipToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	var used int
	for i, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width {
			return s[:i]
		}
		used += w
	}
	return s
}
