package convert

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContext = 3

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// UnifiedDiff renders a line diff between before and after in unified format with three
// lines of context. Identical inputs give an empty string.
func UnifiedDiff(oldName, newName, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	src, dst, lineArray := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lineArray)

	var lines []diffLine

	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			lines = append(lines, diffLine{op: d.Type, text: text})
		}
	}

	var buf strings.Builder

	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", oldName, newName)

	for _, hunk := range hunks(lines) {
		writeHunk(&buf, lines, hunk)
	}

	return buf.String()
}

func splitLines(text string) []string {
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	return parts
}

// hunks groups changed lines whose equal gap fits in two contexts into [start, end) ranges.
func hunks(lines []diffLine) [][2]int {
	var ranges [][2]int

	for idx, line := range lines {
		if line.op == diffmatchpatch.DiffEqual {
			continue
		}

		start := max(idx-diffContext, 0)
		end := min(idx+diffContext+1, len(lines))

		if n := len(ranges); n > 0 && start <= ranges[n-1][1] {
			ranges[n-1][1] = end

			continue
		}

		ranges = append(ranges, [2]int{start, end})
	}

	return ranges
}

func writeHunk(buf *strings.Builder, lines []diffLine, hunk [2]int) {
	oldStart, newStart := 1, 1

	for _, line := range lines[:hunk[0]] {
		if line.op != diffmatchpatch.DiffInsert {
			oldStart++
		}

		if line.op != diffmatchpatch.DiffDelete {
			newStart++
		}
	}

	var oldCount, newCount int

	for _, line := range lines[hunk[0]:hunk[1]] {
		if line.op != diffmatchpatch.DiffInsert {
			oldCount++
		}

		if line.op != diffmatchpatch.DiffDelete {
			newCount++
		}
	}

	// An empty side points at the line before the hunk.
	if oldCount == 0 {
		oldStart--
	}

	if newCount == 0 {
		newStart--
	}

	fmt.Fprintf(buf, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)

	for _, line := range lines[hunk[0]:hunk[1]] {
		prefix := " "

		switch line.op {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
		}

		buf.WriteString(prefix)
		buf.WriteString(line.text)

		if !strings.HasSuffix(line.text, "\n") {
			buf.WriteString("\n\\ No newline at end of file\n")
		}
	}
}
