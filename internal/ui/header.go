package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/orbitrc/orbit/internal/health"
)

func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	parts := []string{
		styles.Logo.Render("orbit"),
		styles.ConnectivityStyle(m.conn).Render(connectivityLabel(m.conn)),
	}
	if addr := strings.TrimSpace(m.address()); addr != "" {
		parts = append(parts, styles.MutedText.Render(addr))
	}
	if m.devMode() {
		parts = append(parts, styles.badge(m.theme.Accent).Render("DEV"))
	}
	if m.snapshot.Synthetic {
		parts = append(parts, styles.badge(m.theme.Warning).Render("SAMPLE DATA"))
	}
	if m.snapshot.Loaded {
		parts = append(parts, styles.FaintText.Render("updated "+m.snapshot.LoadedAt.Format("15:04:05")))
	}
	if m.conn == health.Error && m.health != nil {
		if n := m.health.WakeAttempts(); n > 0 {
			parts = append(parts, styles.FaintText.Render(fmt.Sprintf("wake attempts: %d", n)))
		}
	}

	line := strings.Join(parts, " ")
	return styles.Header.Width(max(m.width, lipgloss.Width(line))).Render(line)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.notice.text != "" && m.now().Before(m.notice.expires) {
		var style lipgloss.Style
		switch m.notice.level {
		case noticeSuccess:
			style = styles.SuccessText
		case noticeWarning:
			style = styles.WarningText
		case noticeDanger:
			style = styles.DangerText
		default:
			style = styles.AccentText
		}
		return styles.Footer.Render(style.Render(m.notice.text))
	}
	return styles.Footer.Render(m.help.View(m.keys))
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	full := m.help
	full.ShowAll = true

	var b strings.Builder
	b.WriteString(styles.Logo.Render("orbit"))
	b.WriteString(styles.MutedText.Render(" keyboard shortcuts"))
	b.WriteString("\n\n")
	b.WriteString(full.View(m.keys))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Cards marked … await the backend; ! means no backend confirmed the move."))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("Press any key to close."))
	return b.String()
}

func connectivityLabel(state health.State) string {
	switch state {
	case health.Online:
		return "ONLINE"
	case health.Error:
		return "BACKEND DOWN"
	case health.Offline:
		return "OFFLINE"
	default:
		return "CHECKING"
	}
}
