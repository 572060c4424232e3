package host

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Terminal prints host UI and collects answers to prompts. Input lines
// arrive through Feed; whoever reads the input stream calls it.
type Terminal struct {
	out   io.Writer
	outMu sync.Mutex

	promptMu sync.Mutex
	mu       sync.Mutex
	pending  chan string

	styles styles
}

type styles struct {
	view   lipgloss.Style
	dialog lipgloss.Style
	toast  lipgloss.Style
	label  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		view: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1),
		toast: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245")),
		label: lipgloss.NewStyle().
			Bold(true),
	}
}

// NewTerminal returns a Terminal writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, styles: defaultStyles()}
}

// Println writes a line.
func (t *Terminal) Println(s string) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	fmt.Fprintln(t.out, s)
}

// ShowView renders the text of view id.
func (t *Terminal) ShowView(id, text string) {
	t.Println(t.styles.view.Render(t.styles.label.Render(id) + "\n" + text))
}

// ShowToast renders a transient message.
func (t *Terminal) ShowToast(text string) {
	t.Println(t.styles.toast.Render("» " + text))
}

// Feed hands line to the prompt waiting for an answer. It reports
// whether a prompt consumed the line.
func (t *Terminal) Feed(line string) bool {
	t.mu.Lock()
	ch := t.pending
	t.pending = nil
	t.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- line
	return true
}

// Waiting reports whether a prompt is waiting for input.
func (t *Terminal) Waiting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Choose shows message in a dialog box and waits for one of choices.
// Answers match a choice by its first letter or in full, ignoring case.
// An empty answer picks the first choice.
func (t *Terminal) Choose(ctx context.Context, message string, choices ...string) (string, error) {
	t.promptMu.Lock()
	defer t.promptMu.Unlock()

	labels := make([]string, len(choices))
	for i, c := range choices {
		labels[i] = "[" + c[:1] + "]" + c[1:]
	}
	t.Println(t.styles.dialog.Render(message + "\n" + strings.Join(labels, "  ")))

	for {
		answer, err := t.ask(ctx)
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer == "" {
			return choices[0], nil
		}
		for _, c := range choices {
			if answer == strings.ToLower(c) || answer == strings.ToLower(c[:1]) {
				return c, nil
			}
		}
		t.Println("choose one of: " + strings.Join(choices, ", "))
	}
}

func (t *Terminal) ask(ctx context.Context) (string, error) {
	ch := make(chan string, 1)
	t.mu.Lock()
	t.pending = ch
	t.mu.Unlock()

	select {
	case line := <-ch:
		return line, nil
	case <-ctx.Done():
		t.mu.Lock()
		if t.pending == ch {
			t.pending = nil
		}
		t.mu.Unlock()
		return "", ctx.Err()
	}
}
