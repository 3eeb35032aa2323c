package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTable_AlignsByDisplayWidth(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"LABEL", "CONFIDENCE"}, [][]string{
		{"Tomato___Early_blight", "30.00%"},
		{"番茄", "5.00%"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	col := strings.Index(lines[0], "CONFIDENCE")
	assert.Equal(t, col, strings.Index(lines[2], "30.00%"))
	// The wide runes take two cells each.
	assert.Equal(t, col, runewidth.StringWidth(lines[3][:strings.Index(lines[3], "5.00%")]))
}

func TestWriteTable_TruncatesLongCells(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", 100)
	writeTable(&buf, []string{"A", "B"}, [][]string{{long, "end"}})

	assert.Contains(t, buf.String(), "…")
	assert.NotContains(t, buf.String(), long)
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abcdef", padRight("abcdef", 4))
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "72.50%", formatConfidence(72.5))
}
