package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

//go:embed docs.md
var docsMarkdown string

const (
	defaultDocsWidth = 90
	maxDocsWidth     = 120
)

// MarkdownRenderer renders markdown for the terminal.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer. plainText drops colors, for output
// that is not a terminal.
func NewMarkdownRenderer(plainText bool) (*MarkdownRenderer, error) {
	width := defaultDocsWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w-4, maxDocsWidth)
	}

	style := glamour.WithStandardStyle("dark")
	if plainText {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &MarkdownRenderer{renderer: renderer}, nil
}

// Render renders markdown content to styled terminal output.
func (mr *MarkdownRenderer) Render(content string) (string, error) {
	if content == "" {
		return "", nil
	}
	rendered, err := mr.renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// showDocs renders the documentation. On a terminal it goes through $PAGER
// (less -R by default); otherwise it is written to out.
func showDocs(out io.Writer, interactive bool) error {
	mr, err := NewMarkdownRenderer(!interactive)
	if err != nil {
		return err
	}
	rendered, err := mr.Render(docsMarkdown)
	if err != nil {
		return err
	}
	if !interactive {
		_, err := io.WriteString(out, rendered)
		return err
	}
	return page(rendered, out)
}

func page(text string, out io.Writer) error {
	pager := strings.Fields(os.Getenv("PAGER"))
	if len(pager) == 0 {
		pager = []string{"less", "-R"}
	}
	if _, err := exec.LookPath(pager[0]); err != nil {
		_, err := io.WriteString(out, text)
		return err
	}
	cmd := exec.Command(pager[0], pager[1:]...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
