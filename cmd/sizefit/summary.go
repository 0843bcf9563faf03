package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/sizing"
)

var (
	colorInk     = lipgloss.Color("#E5E9F0")
	colorDim     = lipgloss.Color("#7A8291")
	colorSuccess = lipgloss.Color("#A3BE8C")
	colorWarn    = lipgloss.Color("#EBCB8B")

	labelStyle = lipgloss.NewStyle().Foreground(colorDim)
	valueStyle = lipgloss.NewStyle().Foreground(colorInk).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
)

type summaryRow struct {
	label string
	value string
	style lipgloss.Style
}

func row(label, value string) summaryRow {
	return summaryRow{label: label, value: value, style: valueStyle}
}

func fitRows(src *codec.SourceImage, band sizing.Band, out *sizing.Outcome, dest string) []summaryRow {
	verdict := summaryRow{label: "Result", value: "within tolerance", style: okStyle}
	switch {
	case out.ShortCircuited:
		verdict.value = "already below target, re-encoded without search"
	case !out.WithinTolerance:
		verdict = summaryRow{label: "Result", value: "best effort, outside tolerance", style: warnStyle}
	}

	quality := "lossless"
	if out.Quality > 0 {
		quality = fmt.Sprintf("%d", out.Quality)
	}

	rows := []summaryRow{
		row("Original", fmt.Sprintf("%s, %dx%d %s", sizing.FormatSize(src.ByteSize), src.Width, src.Height, src.Format)),
		row("Target band", fmt.Sprintf("%s - %s", sizing.FormatSize(band.Lower), sizing.FormatSize(band.Upper))),
		row("Final size", sizing.FormatSize(out.Bytes)),
		row("Dimensions", fmt.Sprintf("%dx%d", out.Width, out.Height)),
		row("Quality", quality),
		row("Trial encodes", fmt.Sprintf("%d", out.Trials)),
	}
	if out.Substitution.Substituted() {
		sub := fmt.Sprintf("%s -> %s", out.Substitution.From, out.Substitution.To)
		if out.Substitution.AlphaFlattened {
			sub += " (alpha flattened on white)"
		}
		rows = append(rows, row("Format", sub))
	}
	return append(rows, verdict, row("Output", dest))
}

func resizeRows(src *codec.SourceImage, out *sizing.Outcome, dest string) []summaryRow {
	return []summaryRow{
		row("Original", fmt.Sprintf("%s, %dx%d %s", sizing.FormatSize(src.ByteSize), src.Width, src.Height, src.Format)),
		row("Dimensions", fmt.Sprintf("%dx%d", out.Width, out.Height)),
		row("Final size", sizing.FormatSize(out.Bytes)),
		row("Format", out.Format.String()),
		row("Output", dest),
	}
}

func renderSummary(rows []summaryRow) string {
	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(r.label))
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		label := labelStyle.Width(labelWidth).Render(r.label)
		lines = append(lines, fmt.Sprintf("%s  %s", label, r.style.Render(r.value)))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorDim).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
