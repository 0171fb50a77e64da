// Package console is the portal's terminal front end: a line-oriented shell
// driving the router, a blocking modal for presented errors and a renderer
// for view snapshots.
package console

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"cluster-portal/pkg/presenter"

	"github.com/charmbracelet/lipgloss"
)

// ErrDetached is returned by Show once the modal has been detached
var ErrDetached = errors.New("modal detached")

// DefaultTitles maps title keys to the text shown in dialogs
var DefaultTitles = map[string]string{
	presenter.DefaultTitleKey: "Something went wrong",
	"error.viewLoad":          "The page could not be loaded",
	"login.failed":            "Sign-in failed",
	"clusters.load":           "Could not load clusters",
	"alerts.load":             "Could not load alerts",
	"alerts.ack":              "Could not acknowledge the alert",
	"logs.load":               "Could not load logs",
	"networks.load":           "Could not load networks",
	"networks.create":         "Could not create the network",
	"networks.delete":         "Could not delete the network",
	"components.load":         "Could not load components",
	"smtp.load":               "Could not load the mail settings",
	"smtp.save":               "Could not save the mail settings",
	"smtp.test":               "The test mail was not sent",
}

type dialog struct {
	d     presenter.Dialog
	onAck func()
}

// Modal is a presenter.Modal printing dialogs to a terminal. Dialogs queue
// up; only the first is on screen and each waits for its own Ack.
type Modal struct {
	mu       sync.Mutex
	out      io.Writer
	titles   map[string]string
	queue    []dialog
	onScreen bool
	detached bool

	box   lipgloss.Style
	title lipgloss.Style
	faint lipgloss.Style
}

// NewModal creates a modal writing to out. titles overrides DefaultTitles.
func NewModal(out io.Writer, titles map[string]string) *Modal {
	merged := make(map[string]string, len(DefaultTitles)+len(titles))
	for k, v := range DefaultTitles {
		merged[k] = v
	}
	for k, v := range titles {
		merged[k] = v
	}

	return &Modal{
		out:    out,
		titles: merged,
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1),
		title: lipgloss.NewStyle().Bold(true),
		faint: lipgloss.NewStyle().Faint(true),
	}
}

// Show queues d. It is rendered at once when nothing else is on screen.
func (m *Modal) Show(d presenter.Dialog, onAck func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detached {
		return ErrDetached
	}
	m.queue = append(m.queue, dialog{d: d, onAck: onAck})
	if m.onScreen {
		return nil
	}
	if err := m.write(m.queue[0].d); err != nil {
		m.queue = m.queue[:len(m.queue)-1]
		return err
	}
	m.onScreen = true
	return nil
}

// Pending reports whether a dialog waits for acknowledgement
func (m *Modal) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) > 0
}

// Current returns the dialog on screen
func (m *Modal) Current() (presenter.Dialog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return presenter.Dialog{}, false
	}
	return m.queue[0].d, true
}

// Ack acknowledges the dialog on screen and shows the next one. It returns
// false when nothing was pending.
func (m *Modal) Ack() bool {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return false
	}
	head := m.queue[0]
	m.queue = m.queue[1:]
	m.onScreen = false
	m.mu.Unlock()

	// onAck may show further dialogs
	if head.onAck != nil {
		head.onAck()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 && !m.onScreen && !m.detached {
		// a failed write leaves the dialog queued for the next Show
		m.onScreen = m.write(m.queue[0].d) == nil
	}
	return true
}

// Detach makes further Show calls fail so the presenter falls back to its
// sink. Queued dialogs are dropped unacknowledged.
func (m *Modal) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = true
	m.queue = nil
	m.onScreen = false
}

// Title returns the display text of a title key
func (m *Modal) Title(key string) string {
	if t, ok := m.titles[key]; ok {
		return t
	}
	return key
}

// Render returns the dialog as it appears on screen
func (m *Modal) Render(d presenter.Dialog) string {
	var b strings.Builder
	b.WriteString(m.title.Render(m.Title(d.TitleKey)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "code: %s", d.Code)

	keys := make([]string, 0, len(d.Data))
	for k := range d.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, d.Data[k])
	}

	if d.SessionInvalid {
		b.WriteString("\n\nYour session is no longer valid. You will be signed out.")
	}
	b.WriteString("\n")
	b.WriteString(m.faint.Render("type ok to continue"))
	return m.box.Render(b.String())
}

func (m *Modal) write(d presenter.Dialog) error {
	_, err := fmt.Fprintln(m.out, m.Render(d))
	return err
}
