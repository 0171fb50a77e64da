package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/loop"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/session"
	"cluster-portal/pkg/views"

	"github.com/rs/zerolog"
)

// Router is the part of the route resolver the shell drives
type Router interface {
	Navigate(path string)
	Current() (string, router.View)
	Routes() []router.Route
	OnNavigate(fn func(path string, v router.View))
}

// ShellConfig wires a shell
type ShellConfig struct {
	Loop   *loop.Loop
	Router Router
	Modal  *Modal
	Store  *session.Store
	Out    io.Writer
	// Logout ends the session. It runs on the loop.
	Logout func()
}

// Shell reads commands line by line and runs each on the loop
type Shell struct {
	loop   *loop.Loop
	router Router
	modal  *Modal
	store  *session.Store
	out    io.Writer
	render *Renderer
	logout func()
	logger zerolog.Logger

	path string
	view router.View
}

// NewShell creates a shell and hooks it to the router's navigations. It must
// be called before the loop starts or from the loop.
func NewShell(cfg ShellConfig) *Shell {
	s := &Shell{
		loop:   cfg.Loop,
		router: cfg.Router,
		modal:  cfg.Modal,
		store:  cfg.Store,
		out:    cfg.Out,
		render: NewRenderer(cfg.Out),
		logout: cfg.Logout,
		logger: log.WithComponent("console"),
	}
	s.router.OnNavigate(s.viewChanged)
	return s
}

func (s *Shell) viewChanged(path string, v router.View) {
	s.path, s.view = path, v
	if o, ok := v.(views.Observable); ok {
		o.OnUpdate(func() {
			// updates of a view that is no longer current are dropped
			if s.view == v {
				s.show()
			}
		})
	}
	s.show()
}

func (s *Shell) show() {
	var snapshot any
	if sn, ok := s.view.(views.Snapshotter); ok {
		snapshot = sn.Snapshot()
	}
	if err := s.render.Snapshot(s.path, snapshot, nil); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to render view")
	}
}

// Run reads commands from in until EOF, quit or ctx is done
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	if err := s.loop.Do(s.prompt); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}

			var quit bool
			if err := s.loop.Do(func() {
				quit = s.Exec(line)
				if !quit {
					s.prompt()
				}
			}); err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (s *Shell) prompt() {
	path := s.path
	if path == "" {
		path = "-"
	}
	fmt.Fprintf(s.out, "%s> ", path)
}

// Exec runs one command line and reports whether the shell should stop. It
// must run on the loop.
func (s *Shell) Exec(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		s.help()
		return false
	case "ok":
		if !s.modal.Ack() {
			s.render.Line("nothing to acknowledge")
		}
		return false
	}

	if s.modal.Pending() {
		s.render.Line("acknowledge the dialog first (ok)")
		return false
	}

	switch cmd {
	case "go":
		if len(args) != 1 {
			s.render.Line("usage: go <path>")
			return false
		}
		s.router.Navigate(args[0])
	case "routes":
		for _, r := range s.router.Routes() {
			s.render.Line("%-12s %s", r.Path, r.Module)
		}
	case "show":
		s.show()
	case "whoami":
		s.whoami()
	case "logout":
		if s.logout != nil {
			s.logout()
		}
	case "page":
		s.page(args)
	case "filter":
		s.filter(args)
	case "refresh":
		if p, ok := s.view.(views.Pager); ok {
			p.Refresh()
		} else {
			s.render.Line("this page cannot be refreshed")
		}
	default:
		s.act(cmd, args)
	}
	return false
}

func (s *Shell) page(args []string) {
	p, ok := s.view.(views.Pager)
	if !ok {
		s.render.Line("this page is not paged")
		return
	}
	if len(args) != 1 {
		s.render.Line("usage: page <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		s.render.Line("page must be a positive number")
		return
	}
	p.SetPage(n)
}

func (s *Shell) filter(args []string) {
	p, ok := s.view.(views.Pager)
	if !ok {
		s.render.Line("this page is not paged")
		return
	}
	switch len(args) {
	case 1:
		p.SetFilter(args[0], "")
	case 2:
		p.SetFilter(args[0], args[1])
	default:
		s.render.Line("usage: filter <key> [value]")
	}
}

func (s *Shell) act(cmd string, args []string) {
	a, ok := s.view.(views.Actor)
	if !ok {
		s.render.Line("unknown command %q, try help", cmd)
		return
	}
	if err := a.Act(cmd, args); err != nil {
		if errors.Is(err, views.ErrUnknownAction) {
			s.render.Line("unknown command %q, try help", cmd)
			return
		}
		s.render.Line("%s: %v", cmd, err)
	}
}

type whoami struct {
	User      string `yaml:"user"`
	ExpiresAt string `yaml:"expiresAt,omitempty"`
	Cluster   string `yaml:"cluster,omitempty"`
	EndPoint  string `yaml:"endPoint,omitempty"`
}

func (s *Shell) whoami() {
	sess := s.store.CurrentSession()
	w := whoami{User: sess.Identity}
	if w.User == "" {
		w.User = "(signed out)"
	}
	if !sess.ExpiresAt.IsZero() {
		w.ExpiresAt = sess.ExpiresAt.Format("2006-01-02 15:04:05 MST")
	}
	if c := s.store.CurrentCluster(); c != nil {
		w.Cluster = c.Name
		if w.Cluster == "" {
			w.Cluster = c.ID
		}
		w.EndPoint = c.EndPoint
	}
	if err := s.render.Value(w); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to render session")
	}
}

func (s *Shell) help() {
	s.render.Line("go <path>            open a page (routes lists them)")
	s.render.Line("page <n>             show page n of a listing")
	s.render.Line("filter <key> [value] set or clear a listing filter")
	s.render.Line("refresh              reload the current page")
	s.render.Line("show                 print the current page again")
	s.render.Line("whoami               show the session and cluster")
	s.render.Line("logout               sign out")
	s.render.Line("ok                   acknowledge the dialog on screen")
	s.render.Line("quit                 leave the shell")
	if a, ok := s.view.(views.Actor); ok {
		s.render.Line("")
		s.render.Line("on this page:")
		for _, line := range a.Actions() {
			s.render.Line("  %s", line)
		}
	}
}
