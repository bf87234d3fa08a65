// Package diff renders line diffs of course files that were replaced by an
// update, so the student can see what changed in their tasks and tests.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const binaryProbeSize = 8000

// Generator produces line diffs with a fixed amount of context.
type Generator struct {
	contextLines int
	colorEnabled bool
}

// NewGenerator creates a generator. Long unchanged stretches are collapsed to
// contextLines lines around each change.
func NewGenerator(contextLines int, colorEnabled bool) *Generator {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Generator{contextLines: contextLines, colorEnabled: colorEnabled}
}

// FileDiff is the difference between the student's copy of a file and the
// upstream one.
type FileDiff struct {
	Name         string
	Text         string
	AddedLines   int
	DeletedLines int
	IsBinary     bool
}

// Changed reports whether the two versions differ.
func (d *FileDiff) Changed() bool {
	return d.IsBinary || d.AddedLines > 0 || d.DeletedLines > 0
}

// Compare diffs oldContent against newContent line by line.
func (g *Generator) Compare(name, oldContent, newContent string) *FileDiff {
	result := &FileDiff{Name: name}
	if oldContent == newContent {
		return result
	}
	if isBinary(oldContent) || isBinary(newContent) {
		result.IsBinary = true
		result.Text = fmt.Sprintf("Binary file %s has changed\n", name)
		return result
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	var b strings.Builder
	b.WriteString(g.colorize("--- a/"+name+"\n", color.FgRed))
	b.WriteString(g.colorize("+++ b/"+name+"\n", color.FgGreen))
	for i, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			result.AddedLines += len(lines)
			g.writeLines(&b, "+", lines, color.FgGreen)
		case diffmatchpatch.DiffDelete:
			result.DeletedLines += len(lines)
			g.writeLines(&b, "-", lines, color.FgRed)
		default:
			g.writeContext(&b, lines, i == 0, i == len(diffs)-1)
		}
	}
	result.Text = b.String()
	return result
}

// writeContext prints unchanged lines, keeping only contextLines next to the
// surrounding changes.
func (g *Generator) writeContext(b *strings.Builder, lines []string, first, last bool) {
	n := g.contextLines
	head, tail := n, n
	if first {
		head = 0
	}
	if last {
		tail = 0
	}
	if len(lines) <= head+tail {
		g.writeLines(b, " ", lines, 0)
		return
	}
	g.writeLines(b, " ", lines[:head], 0)
	b.WriteString(g.colorize(fmt.Sprintf("@@ %d unchanged lines @@\n", len(lines)-head-tail), color.FgCyan))
	g.writeLines(b, " ", lines[len(lines)-tail:], 0)
}

func (g *Generator) writeLines(b *strings.Builder, prefix string, lines []string, attr color.Attribute) {
	for _, line := range lines {
		text := prefix + line + "\n"
		if attr != 0 {
			text = g.colorize(text, attr)
		}
		b.WriteString(text)
	}
}

func (g *Generator) colorize(text string, attr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(attr).Sprint(text)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func isBinary(content string) bool {
	probe := content
	if len(probe) > binaryProbeSize {
		probe = probe[:binaryProbeSize]
	}
	return strings.IndexByte(probe, 0) >= 0
}

// Summary returns a short description such as "+3 -1".
func (d *FileDiff) Summary() string {
	switch {
	case d.IsBinary:
		return "binary file changed"
	case !d.Changed():
		return "no changes"
	}
	parts := make([]string, 0, 2)
	if d.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d", d.AddedLines))
	}
	if d.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d", d.DeletedLines))
	}
	return strings.Join(parts, " ")
}
