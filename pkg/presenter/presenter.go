// Package presenter is the terminal handler for request failures: it
// normalizes whatever a failed call produced, shows it in a blocking modal
// and, once the user acknowledges, signs the user out when the server said
// the session is no longer valid.
package presenter

import (
	"errors"
	"sync"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"

	"github.com/rs/zerolog"
)

// DefaultTitleKey is used when the caller gives no title
const DefaultTitleKey = "error.generic"

// ErrNoModal is reported when no presentation layer is attached
var ErrNoModal = errors.New("no modal attached")

// SessionInvalidCodes are the server codes meaning the caller is no longer
// authenticated or authorized. New server codes are not assumed to belong
// here until confirmed.
var SessionInvalidCodes = []string{
	models.CodeNotSignedIn,
	models.CodeSessionExpired,
	models.CodeSessionTimeout,
	models.CodePermissionRevoked,
	models.CodeInvalidToken,
}

// Dialog is what a Modal displays
type Dialog struct {
	TitleKey       string
	Code           string
	Data           map[string]any
	SessionInvalid bool
}

// Modal shows a dialog with a single acknowledgement action and calls onAck
// when the user acknowledges it. Show returns an error when it cannot
// display anything.
type Modal interface {
	Show(d Dialog, onAck func()) error
}

// Navigator forces the application back to the login route
type Navigator interface {
	ToLogin()
}

// SessionClearer is the part of the session store the presenter mutates
type SessionClearer interface {
	ClearSession() error
}

// Sink receives failures that could not be shown to the user
type Sink interface {
	Report(info models.ErrorInfo, titleKey string, cause error)
}

// Option configures a Presenter
type Option func(*Presenter)

// WithSink replaces the default log sink
func WithSink(s Sink) Option {
	return func(p *Presenter) {
		p.sink = s
	}
}

// WithRemap adds entries to the remap table
func WithRemap(t RemapTable) Option {
	return func(p *Presenter) {
		for k, v := range t {
			p.remap[k] = v
		}
	}
}

// WithNavigator sets the navigator used for forced logout
func WithNavigator(n Navigator) Option {
	return func(p *Presenter) {
		p.nav = n
	}
}

// Presenter implements the error presentation policy
type Presenter struct {
	store   SessionClearer
	modal   Modal
	sink    Sink
	remap   RemapTable
	invalid map[string]bool

	mu  sync.RWMutex
	nav Navigator

	logger zerolog.Logger
}

// New creates a presenter
func New(store SessionClearer, modal Modal, opts ...Option) *Presenter {
	p := &Presenter{
		store:   store,
		modal:   modal,
		sink:    LogSink{},
		remap:   DefaultRemapTable(),
		invalid: make(map[string]bool, len(SessionInvalidCodes)),
		logger:  log.WithComponent("presenter"),
	}
	for _, code := range SessionInvalidCodes {
		p.invalid[code] = true
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// BindNavigator attaches the navigator once the router exists
func (p *Presenter) BindNavigator(n Navigator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nav = n
}

// IsSessionInvalid reports whether a resolved code forces a logout
func (p *Presenter) IsSessionInvalid(code string) bool {
	return p.invalid[code]
}

// Resolve normalizes a failure into the ErrorInfo that will be displayed
func (p *Presenter) Resolve(failure any) models.ErrorInfo {
	info, _ := p.resolve(failure)
	return info
}

func (p *Presenter) resolve(failure any) (models.ErrorInfo, Policy) {
	info := normalize(failure)
	if info.Code == "" {
		info.Code = models.CodeUnreachableServer
	}
	if policy, ok := p.remap.Lookup(info.Code, info.DataType()); ok {
		info.Code = policy.Code
		return info, policy
	}
	return info, Policy{}
}

// normalize maps every shape a failure can take onto an ErrorInfo
func normalize(failure any) models.ErrorInfo {
	switch f := failure.(type) {
	case nil:
		return models.ErrorInfo{Code: models.CodeServiceUnavailable}
	case string:
		return models.ErrorInfo{Code: models.CodeServerError, Data: map[string]any{"message": f}}
	case models.ErrorInfo:
		return f
	case *models.ErrorInfo:
		if f == nil {
			return models.ErrorInfo{Code: models.CodeServiceUnavailable}
		}
		return *f
	case error:
		var info *models.ErrorInfo
		if errors.As(f, &info) && info != nil {
			return *info
		}
		return models.ErrorInfo{Code: models.CodeServerError, Data: map[string]any{"message": f.Error()}, Cause: f}
	default:
		return models.ErrorInfo{Code: models.CodeServerError}
	}
}

// Present shows failure under titleKey. It never fails: when the modal
// cannot be shown the failure goes to the sink and the acknowledgement side
// effects run immediately.
func (p *Presenter) Present(failure any, titleKey string) {
	info, policy := p.resolve(failure)

	title := titleKey
	if title == "" {
		title = policy.TitleKey
	}
	if title == "" {
		title = DefaultTitleKey
	}

	invalid := p.invalid[info.Code]
	metrics.ErrorsPresented.WithLabelValues(info.Code).Inc()
	p.logger.Debug().
		Str("code", info.Code).
		Str("title", title).
		Bool("session_invalid", invalid).
		Msg("Presenting error")

	var once sync.Once
	ack := func() {
		once.Do(func() { p.acknowledge(info.Code) })
	}

	err := ErrNoModal
	if p.modal != nil {
		err = p.modal.Show(Dialog{
			TitleKey:       title,
			Code:           info.Code,
			Data:           info.Data,
			SessionInvalid: invalid,
		}, ack)
	}
	if err != nil {
		metrics.PresenterUnavailable.Inc()
		p.sink.Report(info, title, err)
		ack()
	}
}

func (p *Presenter) acknowledge(code string) {
	if !p.invalid[code] {
		return
	}

	metrics.ForcedLogouts.Inc()
	if err := p.store.ClearSession(); err != nil {
		p.logger.Error().Err(err).Str("code", code).Msg("Failed to clear session")
	}

	p.mu.RLock()
	nav := p.nav
	p.mu.RUnlock()
	if nav != nil {
		nav.ToLogin()
	} else {
		p.logger.Warn().Str("code", code).Msg("No navigator bound, staying on current route")
	}
}

// LogSink reports failures through the component logger
type LogSink struct{}

func (LogSink) Report(info models.ErrorInfo, titleKey string, cause error) {
	logger := log.WithComponent("presenter")
	logger.Error().
		Err(cause).
		Str("code", info.Code).
		Str("kind", info.Kind.String()).
		Str("title", titleKey).
		Interface("data", info.Data).
		Msg("Error could not be presented")
}
