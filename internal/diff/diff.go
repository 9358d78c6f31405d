// Package diff renders line diffs for change previews using sergi/go-diff.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ContextLines is the number of unchanged lines kept around each change.
const ContextLines = 3

// LineType classifies a line in a hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is one line of a hunk.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is a contiguous group of changes with surrounding context.
// Starts are 1-based; a zero start with zero count denotes an empty side.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff is the line diff between two versions of one script or asset.
type FileDiff struct {
	Name     string
	IsNew    bool
	IsDelete bool
	Hunks    []Hunk
}

// Empty reports whether the two versions were identical.
func (d *FileDiff) Empty() bool { return len(d.Hunks) == 0 }

// Stats returns the number of added and removed lines.
func (d *FileDiff) Stats() (added, removed int) {
	for _, h := range d.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

type op struct {
	typ     LineType
	oldLine int // 0-based index into old, -1 for insertions
	newLine int // 0-based index into new, -1 for deletions
	content string
}

// Compute diffs before against after at line granularity.
func Compute(name, before, after string) *FileDiff {
	d := &FileDiff{Name: name, IsNew: before == "", IsDelete: after == ""}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	d.Hunks = group(toOps(diffs), ContextLines)
	return d
}

func toOps(diffs []diffmatchpatch.Diff) []op {
	var ops []op
	oldLine, newLine := 0, 0
	for _, df := range diffs {
		text := strings.TrimSuffix(df.Text, "\n")
		if df.Text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			switch df.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, op{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, op{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, op{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

// group collects changed ops into hunks, merging changes separated by at
// most 2*context unchanged lines.
func group(ops []op, context int) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].typ == LineContext {
			i++
		}
		if i >= len(ops) {
			break
		}

		start := max(i-context, 0)
		end := i
		for end < len(ops) {
			if ops[end].typ != LineContext {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].typ == LineContext {
				run++
			}
			if run == len(ops) || run-end > 2*context {
				end = min(end+context, len(ops))
				break
			}
			end = run
		}

		hunks = append(hunks, makeHunk(ops[start:end]))
		i = end
	}
	return hunks
}

func makeHunk(ops []op) Hunk {
	h := Hunk{Lines: make([]Line, 0, len(ops))}
	for _, o := range ops {
		h.Lines = append(h.Lines, Line{Type: o.typ, Content: o.content})
		if o.oldLine >= 0 {
			if h.OldCount == 0 {
				h.OldStart = o.oldLine + 1
			}
			h.OldCount++
		}
		if o.newLine >= 0 {
			if h.NewCount == 0 {
				h.NewStart = o.newLine + 1
			}
			h.NewCount++
		}
	}
	return h
}

// Unified renders d in unified diff format.
func (d *FileDiff) Unified() string {
	var sb strings.Builder
	oldName, newName := "a/"+d.Name, "b/"+d.Name
	if d.IsNew {
		oldName = "/dev/null"
	}
	if d.IsDelete {
		newName = "/dev/null"
	}
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range d.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteByte('+')
			case LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
