package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxCellWidth caps a column so long labels do not push the table off screen.
const maxCellWidth = 48

// writeTable prints rows under headers with columns aligned by terminal
// display width.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], min(runewidth.StringWidth(cell), maxCellWidth))
			}
		}
	}

	writeRow(w, headers, widths)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	writeRow(w, sep, widths)
	for _, row := range rows {
		writeRow(w, row, widths)
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(widths))
	for i := range widths {
		var cell string
		if i < len(cells) {
			cell = runewidth.Truncate(cells[i], widths[i], "…")
		}
		if i == len(widths)-1 {
			parts[i] = cell
		} else {
			parts[i] = padRight(cell, widths[i])
		}
	}
	fmt.Fprintln(w, strings.Join(parts, "  ")) //nolint:errcheck
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func formatConfidence(c float64) string {
	return fmt.Sprintf("%.2f%%", c)
}
