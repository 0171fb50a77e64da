package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
)

// Renderer prints view snapshots as YAML under a route header
type Renderer struct {
	out    io.Writer
	header lipgloss.Style
	hint   lipgloss.Style
}

// NewRenderer creates a renderer writing to out
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out: out,
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true),
		hint: lipgloss.NewStyle().Faint(true),
	}
}

// Snapshot renders snapshot under path. A nil snapshot renders the header
// alone.
func (r *Renderer) Snapshot(path string, snapshot any, actions []string) error {
	if _, err := fmt.Fprintln(r.out, r.header.Render(path)); err != nil {
		return err
	}
	if snapshot != nil {
		data, err := yaml.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
		if _, err := r.out.Write(data); err != nil {
			return err
		}
	}
	for _, a := range actions {
		if _, err := fmt.Fprintln(r.out, r.hint.Render("  "+a)); err != nil {
			return err
		}
	}
	return nil
}

// Line prints a single message
func (r *Renderer) Line(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Value renders v as YAML
func (r *Renderer) Value(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.out.Write(data)
	return err
}
