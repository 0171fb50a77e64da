package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cluster-portal/pkg/loop"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/session"
	"cluster-portal/pkg/view"
)

// SMTPSnapshot is the rendered state of the mail settings form
type SMTPSnapshot struct {
	Title   string            `yaml:"title"`
	Cluster string            `yaml:"cluster,omitempty"`
	Config  models.SMTPConfig `yaml:"config"`
	Dirty   bool              `yaml:"dirty,omitempty"`
	Loading bool              `yaml:"loading,omitempty"`
	Status  string            `yaml:"status,omitempty"`
}

// smtpView edits the cluster's alert mail settings. It reloads when the
// cluster changes and never requests without a cluster. Saves and test mails
// issued for one cluster never land on another.
type smtpView struct {
	deps     router.Deps
	requests view.Tracker
	saves    view.Tracker
	tests    view.Tracker

	config  models.SMTPConfig
	dirty   bool
	loading bool
	status  string

	unsubscribe func()
	onUpdate    func()
}

func newSMTP(d router.Deps, m router.Manifest) (router.View, error) {
	if err := requireServices(d, m); err != nil {
		return nil, err
	}
	return &smtpView{deps: d}, nil
}

func (v *smtpView) Start() {
	v.unsubscribe = v.deps.Env.Store.OnChange(session.KindCluster, func(c session.Change) {
		if !models.SameCluster(c.OldCluster, c.NewCluster) {
			v.saves.Abort()
			v.tests.Abort()
			v.status = ""
			v.Refresh()
		}
	})
	v.Refresh()
}

func (v *smtpView) Close() {
	v.requests.Close()
	v.saves.Close()
	v.tests.Close()
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}

func (v *smtpView) OnUpdate(fn func()) { v.onUpdate = fn }

func (v *smtpView) Snapshot() any {
	s := SMTPSnapshot{
		Title:   "Mail settings",
		Config:  v.config,
		Dirty:   v.dirty,
		Loading: v.loading,
		Status:  v.status,
	}
	if c := v.deps.Env.Store.CurrentCluster(); c != nil {
		s.Cluster = c.ID
	}
	return s
}

// Refresh discards local edits and reloads the settings
func (v *smtpView) Refresh() {
	if v.requests.Closed() {
		return
	}
	c := v.deps.Env.Store.CurrentCluster()
	if c == nil {
		v.requests.Abort()
		v.config = models.SMTPConfig{}
		v.dirty = false
		v.loading = false
		v.notify()
		return
	}

	ctx, stamp := v.requests.Begin()
	v.loading = true
	v.notify()

	svc := v.deps.Services.SMTP
	loop.Async(v.deps.Env.Loop, ctx, func(ctx context.Context) (models.SMTPConfig, error) {
		return svc.Get(ctx, c)
	}, func(cfg models.SMTPConfig, err error) {
		if !v.requests.Current(stamp) {
			metrics.StaleResponses.Inc()
			return
		}
		v.requests.Finish(stamp)
		v.loading = false
		if err != nil {
			v.deps.Env.Presenter.Present(err, "smtp.load")
		} else {
			v.config = cfg
			v.dirty = false
			v.status = ""
		}
		v.notify()
	})
}

func (v *smtpView) Actions() []string {
	return []string{
		"set <field> <value>   host, port, username, password, from, recipients, tls",
		"save                  store the settings on the cluster",
		"test <recipient>      send a test mail",
		"reload                discard local edits",
	}
}

func (v *smtpView) Act(name string, args []string) error {
	switch name {
	case "set":
		if len(args) < 2 {
			return usage("set <field> <value>")
		}
		return v.set(args[0], strings.Join(args[1:], " "))
	case "save":
		v.save()
		return nil
	case "test":
		if len(args) != 1 {
			return usage("test <recipient>")
		}
		v.test(args[0])
		return nil
	case "reload":
		v.Refresh()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
}

func (v *smtpView) set(field, value string) error {
	switch field {
	case "host":
		v.config.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		v.config.Port = port
	case "username":
		v.config.Username = value
	case "password":
		v.config.Password = value
	case "from":
		v.config.From = value
	case "recipients":
		var rcpt []string
		for _, r := range strings.Split(value, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rcpt = append(rcpt, r)
			}
		}
		v.config.Recipients = rcpt
	case "tls":
		tls, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid tls flag %q", value)
		}
		v.config.TLS = tls
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	v.dirty = true
	v.notify()
	return nil
}

func (v *smtpView) save() {
	c := v.deps.Env.Store.CurrentCluster()
	cfg := v.config
	ctx, stamp := v.saves.Begin()
	v.status = "saving"
	v.notify()

	svc := v.deps.Services.SMTP
	loop.Async(v.deps.Env.Loop, ctx, func(ctx context.Context) (models.SMTPConfig, error) {
		return svc.Update(ctx, c, cfg)
	}, func(saved models.SMTPConfig, err error) {
		if !v.landed(&v.saves, stamp, c) {
			return
		}
		if err != nil {
			v.status = "save failed"
			v.deps.Env.Presenter.Present(err, "smtp.save")
			v.notify()
			return
		}
		v.config = saved
		v.dirty = false
		v.status = "saved"
		v.notify()
	})
}

func (v *smtpView) test(recipient string) {
	c := v.deps.Env.Store.CurrentCluster()
	ctx, stamp := v.tests.Begin()

	svc := v.deps.Services.SMTP
	loop.Async(v.deps.Env.Loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, svc.Test(ctx, c, recipient)
	}, func(_ struct{}, err error) {
		if !v.landed(&v.tests, stamp, c) {
			return
		}
		if err != nil {
			v.deps.Env.Presenter.Present(err, "smtp.test")
			return
		}
		v.status = "test mail sent to " + recipient
		v.notify()
	})
}

// landed reports whether a completion issued for cluster c still applies
// and, if so, releases its request
func (v *smtpView) landed(t *view.Tracker, stamp uint64, c *models.ClusterSelection) bool {
	if !t.Current(stamp) || !models.SameCluster(c, v.deps.Env.Store.CurrentCluster()) {
		metrics.StaleResponses.Inc()
		return false
	}
	t.Finish(stamp)
	return true
}

func (v *smtpView) notify() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}
