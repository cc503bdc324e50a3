// Package diffengine generates unified diffs between two file contents and
// applies (or reverses) them against the workspace via the system "patch"
// utility, per spec.md §4.4's resolution of the checkpoint-tool open
// question in favor of the patch-tool convention (not the CLI's own
// "git apply" convention in the original source).
package diffengine

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

// GenerateUnifiedDiff produces a standard unified diff between before and
// after, with "a/<displayName>" and "b/<displayName>" headers compatible
// with "patch -p1".
func GenerateUnifiedDiff(before, after, displayName string) string {
	ops := lineDiff(before, after)
	hunks := buildHunks(ops, contextLines)

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", displayName)
	fmt.Fprintf(&b, "+++ b/%s\n", displayName)
	for _, h := range hunks {
		b.WriteString(h.header())
		for _, l := range h.lines {
			b.WriteString(l)
		}
	}
	return b.String()
}

// lineOp is one diff-match-patch operation tagged with the line(s) it
// covers, produced by diffing line-tokenized text.
type lineOp struct {
	op    diffmatchpatch.Operation
	lines []string
}

// lineDiff runs go-diff's line-mode diff (tokenize lines to chars, diff the
// chars, then expand back to lines) so the result aligns on line
// boundaries the way a unified diff requires.
func lineDiff(before, after string) []lineOp {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	ops := make([]lineOp, 0, len(diffs))
	for _, d := range diffs {
		ops = append(ops, lineOp{op: d.Type, lines: splitLines(d.Text)})
	}
	return ops
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// hunk is one @@ block of a unified diff.
type hunk struct {
	beforeStart, beforeCount int
	afterStart, afterCount   int
	lines                    []string
}

func (h hunk) header() string {
	return fmt.Sprintf("@@ -%s +%s @@\n", rangeStr(h.beforeStart, h.beforeCount), rangeStr(h.afterStart, h.afterCount))
}

func rangeStr(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// buildHunks walks the line-level diff ops and groups changes plus
// surrounding context into hunks, merging hunks whose context windows
// overlap, the way standard unified-diff generators do.
func buildHunks(ops []lineOp, context int) []hunk {
	type rawLine struct {
		kind byte // ' ', '-', '+'
		text string
	}

	var raw []rawLine
	for _, o := range ops {
		switch o.op {
		case diffmatchpatch.DiffEqual:
			for _, l := range o.lines {
				raw = append(raw, rawLine{' ', l})
			}
		case diffmatchpatch.DiffDelete:
			for _, l := range o.lines {
				raw = append(raw, rawLine{'-', l})
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range o.lines {
				raw = append(raw, rawLine{'+', l})
			}
		}
	}

	// Find change-block index ranges (runs of non-' ').
	type block struct{ start, end int } // [start, end)
	var blocks []block
	i := 0
	for i < len(raw) {
		if raw[i].kind == ' ' {
			i++
			continue
		}
		start := i
		for i < len(raw) && raw[i].kind != ' ' {
			i++
		}
		blocks = append(blocks, block{start, i})
	}
	if len(blocks) == 0 {
		return nil
	}

	// Expand each block by `context` lines of surrounding equal context,
	// merging overlapping windows.
	var windows []block
	for _, bl := range blocks {
		start := bl.start - context
		if start < 0 {
			start = 0
		}
		end := bl.end + context
		if end > len(raw) {
			end = len(raw)
		}
		if len(windows) > 0 && start <= windows[len(windows)-1].end {
			windows[len(windows)-1].end = end
		} else {
			windows = append(windows, block{start, end})
		}
	}

	beforeLine, afterLine := 1, 1
	var hunks []hunk
	rawIdx := 0
	for _, w := range windows {
		// Advance counters for raw lines skipped before this window.
		for rawIdx < w.start {
			switch raw[rawIdx].kind {
			case ' ':
				beforeLine++
				afterLine++
			case '-':
				beforeLine++
			case '+':
				afterLine++
			}
			rawIdx++
		}

		h := hunk{beforeStart: beforeLine, afterStart: afterLine}
		for rawIdx < w.end {
			l := raw[rawIdx]
			switch l.kind {
			case ' ':
				h.lines = append(h.lines, " "+l.text)
				h.beforeCount++
				h.afterCount++
				beforeLine++
				afterLine++
			case '-':
				h.lines = append(h.lines, "-"+l.text)
				h.beforeCount++
				beforeLine++
			case '+':
				h.lines = append(h.lines, "+"+l.text)
				h.afterCount++
				afterLine++
			}
			rawIdx++
		}
		hunks = append(hunks, h)
	}

	return hunks
}
