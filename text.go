package main

import (
	"fmt"
	"math"
	"strings"
)

// unknownTime is shown in place of a duration the player has not reported
const unknownTime = "--:--"

// formatTime converts seconds to M:SS. Fractions are truncated and negative
// values show as 0:00.
func formatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	s := int64(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// formatDuration is formatTime for a value that may still be unknown
func formatDuration(seconds float64, known bool) string {
	if !known {
		return unknownTime
	}
	return formatTime(seconds)
}

// scrollText returns a scrolling window of text with smooth looping
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	fullText := append(runes, []rune(scrollSeparator)...)
	textLen := len(fullText)
	offset = offset % textLen

	var result []rune
	for i := 0; i < max; i++ {
		result = append(result, fullText[(offset+i)%textLen])
	}
	return string(result)
}

const scrollSeparator = "  •  "

// truncateText shortens text to max runes with a trailing ellipsis
func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// meter renders a width-cell bar filled to fraction
func meter(fraction float64, width int, filled, empty string) (string, string) {
	if width < 0 {
		width = 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	n := int(float64(width) * fraction)
	return strings.Repeat(filled, n), strings.Repeat(empty, width-n)
}
