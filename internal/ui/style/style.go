// Package style provides shared UI styling primitives including brand colors
// and icons for consistent visual presentation across the CLI.
package style

import "github.com/charmbracelet/lipgloss"

// Brand Colors.
var (
	Teal   = lipgloss.Color("#0F9D8A")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Arrow   = "→"
	Dot     = "●"
	Circle  = "○"
)

// Reason renders a staleness reason for plan listings.
func Reason(reason string) string {
	return lipgloss.NewStyle().Foreground(Yellow).Render(reason)
}

// TaskName renders a task name in listings.
func TaskName(name string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(Teal).Render(name)
}
