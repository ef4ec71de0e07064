package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Alert   lipgloss.Color // Status color for flagged results
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f87"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Status lipgloss.Style
	Alert  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Status: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Alert:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}

// DefaultCardWidth is the card width used when none is given.
const DefaultCardWidth = 56

// Row is one labeled value of a Card.
type Row struct {
	Label string
	Value string
}

// Card is a boxed summary: a title line with a status badge followed by
// aligned label/value rows.
type Card struct {
	Title  string
	Status string
	// Alert renders the status with the alert color.
	Alert bool
	Rows  []Row
	Help  string
}

// Add appends a row.
func (c *Card) Add(label, value string) {
	c.Rows = append(c.Rows, Row{Label: label, Value: value})
}

// Card implements Carder.
func (c Card) Card() Card { return c }

// Carder is implemented by values that have a card rendering.
type Carder interface {
	Card() Card
}

// Render renders the card to a string.
func (c Card) Render(s Styles, width int) string {
	if width <= 0 {
		width = DefaultCardWidth
	}
	bc := s.Border
	inner := width - 4

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	title := s.Title.Render(c.Title)
	statusStyle := s.Status
	if c.Alert {
		statusStyle = s.Alert
	}
	status := ""
	if c.Status != "" {
		status = statusStyle.Render("[" + c.Status + "]")
	}
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+
		strings.Repeat(" ", padding)+" "+bc.Render("│"))

	if len(c.Rows) > 0 {
		lines = append(lines, bc.Render("├"+strings.Repeat("─", width-2)+"┤"))
	}

	labelWidth := 0
	for _, r := range c.Rows {
		labelWidth = max(labelWidth, lipgloss.Width(r.Label))
	}
	for _, r := range c.Rows {
		label := s.Label.Render(r.Label) + strings.Repeat(" ", labelWidth-lipgloss.Width(r.Label))
		text := label + "  " + r.Value
		if inner > 1 && lipgloss.Width(text) > inner {
			avail := inner - labelWidth - 2 - 1
			text = label + "  " + truncateString(r.Value, avail) + "…"
		}
		lines = append(lines, bc.Render("│")+" "+text+
			strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))+" "+bc.Render("│"))
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	if c.Help != "" {
		lines = append(lines, s.Help.Render(c.Help))
	}
	return strings.Join(lines, "\n")
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
