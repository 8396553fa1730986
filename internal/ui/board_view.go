package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/board"
)

const (
	minColumnWidth = 18
	// header, footer and column borders
	chromeHeight = 6
)

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBoard())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderBoard() string {
	styles := m.theme.Styles()
	width := columnWidth(m.width, len(api.Stages))
	maxCards := max(1, (m.height-chromeHeight)/2)

	cols := make([]string, 0, len(api.Stages))
	for i, stage := range api.Stages {
		col := m.snapshot.Column(stage)
		focused := i == m.col

		var b strings.Builder
		title := fmt.Sprintf("%s %d", stage.Label(), len(col.Cards))
		b.WriteString(styles.StageStyle(stage).Render(truncate(title, width-2)))
		b.WriteString("\n")

		start := scrollStart(len(col.Cards), m.row, maxCards, focused)
		end := min(len(col.Cards), start+maxCards)
		if len(col.Cards) == 0 {
			b.WriteString(styles.FaintText.Render("empty"))
		}
		for idx := start; idx < end; idx++ {
			b.WriteString("\n")
			b.WriteString(m.renderCard(col.Cards[idx], width-2, focused && idx == m.row))
		}
		if hidden := len(col.Cards) - end; hidden > 0 {
			b.WriteString("\n")
			b.WriteString(styles.FaintText.Render(fmt.Sprintf("+%d more", hidden)))
		}

		style := styles.Column
		if focused {
			style = styles.ColumnFocus
		}
		cols = append(cols, style.Width(width).Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderCard(card board.Card, width int, selected bool) string {
	styles := m.theme.Styles()

	title := card.ID + cardMarker(card)
	detail := strings.TrimSpace(card.CreatedBy)
	if card.EstimatedValue > 0 {
		if detail != "" {
			detail += " · "
		}
		detail += FormatValue(card.EstimatedValue)
	}

	titleStyle := styles.Text
	detailStyle := styles.MutedText
	if selected {
		titleStyle = styles.Selected
		detailStyle = styles.Selected
	}
	line := titleStyle.Width(width).Render(truncate(title, width))
	if detail != "" {
		line += "\n" + detailStyle.Width(width).Render(truncate(detail, width))
	}
	return line
}

func cardMarker(card board.Card) string {
	switch {
	case card.Pending:
		return " …"
	case card.Unconfirmed:
		return " !"
	default:
		return ""
	}
}

func columnWidth(total, columns int) int {
	if columns <= 0 {
		return minColumnWidth
	}
	// Each column adds two border cells and two padding cells.
	w := total/columns - 4
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

// scrollStart keeps the selected row visible in the focused column.
func scrollStart(count, row, visible int, focused bool) int {
	if !focused || count <= visible || row < visible {
		return 0
	}
	return min(row-visible+1, count-visible)
}

// FormatValue renders an amount in Brazilian reais, e.g. R$ 3.383,18.
func FormatValue(v float64) string {
	cents := int64(v*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("R$ %s,%02d", grouped.String(), frac)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width == 1 {
		return "…"
	}
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
