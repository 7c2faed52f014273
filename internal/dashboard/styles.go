package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Dashboard color palette
const (
	ColorBorder   = lipgloss.Color("#2A2A4A")
	ColorHealthy  = lipgloss.Color("#2ECC71")
	ColorWarning  = lipgloss.Color("#F39C12")
	ColorCritical = lipgloss.Color("#E74C3C")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent  = lipgloss.Color("#00B8D4")
	ColorPaused  = lipgloss.Color("#9B59B6")
	ColorStopped = lipgloss.Color("#7F8C8D")
)

// Thresholds for gauge severity levels
const (
	WarningThreshold  = 70.0
	CriticalThreshold = 90.0
)

// hasDarkBackground is detected once; light terminals get darker muted text
// so the footer stays readable.
var hasDarkBackground = termenv.HasDarkBackground()

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorCritical).
			Bold(true).
			Padding(0, 1)

	HeaderRowStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary).
			Bold(true)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(ColorTextPrimary).
				Background(lipgloss.Color("#223")).
				Bold(true)

	TombstoneStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Strikethrough(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	FooterStyle = lipgloss.NewStyle().
			Foreground(footerColor()).
			Padding(0, 1)

	StatusOKStyle = lipgloss.NewStyle().
			Foreground(ColorHealthy)

	StatusErrStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(1, 2)

	StateRunningStyle = lipgloss.NewStyle().Foreground(ColorHealthy)
	StatePausedStyle  = lipgloss.NewStyle().Foreground(ColorPaused)
	StateStoppedStyle = lipgloss.NewStyle().Foreground(ColorStopped)
)

func footerColor() lipgloss.Color {
	if hasDarkBackground {
		return ColorTextMuted
	}
	return lipgloss.Color("#55557D")
}

// gaugeStyle picks a color by severity.
func gaugeStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= CriticalThreshold:
		return lipgloss.NewStyle().Foreground(ColorCritical)
	case pct >= WarningThreshold:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	default:
		return lipgloss.NewStyle().Foreground(ColorHealthy)
	}
}

// renderGauge draws a fixed-width usage bar like "▓▓▓░░░░░".
func renderGauge(pct float64, width int) string {
	if width < 1 {
		width = 1
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct/100*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", width-filled)
	return gaugeStyle(pct).Render(bar)
}

// stateStyle picks the style for a container state word.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return StateRunningStyle
	case "paused":
		return StatePausedStyle
	default:
		return StateStoppedStyle
	}
}
