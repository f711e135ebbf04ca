package live

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const (
	connectingLabel = "Connecting to MindWave Headset..."
	barWidth        = 24
	maxESense       = 100
)

func renderView(latest domain.Reading, lastEvent domain.Message, received int, s styles) string {
	lines := []string{
		s.title.Render("MindWave live"),
		s.header.Render(fmt.Sprintf("records: %d", received)),
	}

	if latest == nil {
		lines = append(lines, s.header.Render("waiting for a reading..."))
	} else {
		if level := latest[domain.ChannelPoorSignalLevel]; level > 0 {
			lines = append(lines, s.warning.Render(fmt.Sprintf("poor signal: %.0f", level)))
		}
		lines = append(lines, readingLines(latest, s)...)
	}

	if len(lastEvent) > 0 {
		lines = append(lines, s.event.Render("event: "+formatEvent(lastEvent)))
	}

	lines = append(lines, s.help.Render("q to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func readingLines(reading domain.Reading, s styles) []string {
	bandPeak := 0.0
	for _, field := range domain.Schema() {
		if field.Category == domain.CategoryEEGPower {
			bandPeak = math.Max(bandPeak, reading[field.Channel])
		}
	}

	lines := make([]string, 0, len(reading))
	for _, field := range domain.Schema() {
		if field.Channel == domain.ChannelPoorSignalLevel {
			continue
		}

		value := reading[field.Channel]
		scale := float64(maxESense)
		if field.Category == domain.CategoryEEGPower {
			scale = bandPeak
		}

		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.channel.Render(fmt.Sprintf("%-11s", field.Channel)),
			" ",
			renderBar(value, scale, barWidth, s),
			" ",
			s.value.Render(fmt.Sprintf("%.0f", value)),
		))
	}

	return lines
}

func renderBar(value, scale float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := 0
	if scale > 0 {
		filled = int(math.Round(float64(width) * value / scale))
	}
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func formatEvent(msg domain.Message) string {
	parts := make([]string, 0, len(msg))
	for _, key := range slices.Sorted(maps.Keys(msg)) {
		parts = append(parts, fmt.Sprintf("%s=%v", key, msg[key]))
	}
	return strings.Join(parts, " ")
}
