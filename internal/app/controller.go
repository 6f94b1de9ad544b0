// Package app drives a WaySave client: it owns the navigation state and the
// preferences, and turns user actions and async results into screen changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/waysave/waysave/internal/metrics"
	"github.com/waysave/waysave/internal/nav"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/session"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
)

const eventBuffer = 64

// StationFinder returns the unranked stations of the active tab around a point.
type StationFinder interface {
	Nearby(ctx context.Context, origin station.Location, p prefs.Preferences) ([]station.Station, error)
}

// UpdateSubmitter stores station updates.
type UpdateSubmitter interface {
	Submit(ctx context.Context, s updates.Submission) (updates.Submission, error)
}

// Restorer restores the session at startup.
type Restorer interface {
	Restore(ctx context.Context) session.Outcome
}

// Options wire a Controller.
type Options struct {
	Provider  session.Provider
	Restorer  Restorer
	Finder    StationFinder
	Prefs     *prefs.Holder
	Submitter UpdateSubmitter
	Origin    station.Location

	// SplashDelay defaults to nav.SplashDelay.
	SplashDelay time.Duration

	// BypassAuth treats the user as signed in.
	BypassAuth bool

	// Render is called with a snapshot after every handled event.
	Render func(View)
}

// Controller is the single writer of the client state. Handle must only be called
// from one goroutine; Run does that for events queued with Post.
type Controller struct {
	provider    session.Provider
	restorer    Restorer
	finder      StationFinder
	prefs       *prefs.Holder
	submitter   UpdateSubmitter
	splashDelay time.Duration
	render      func(View)
	log         *slog.Logger

	events chan Event
	done   chan struct{}
	ctx    context.Context
	async  func(fn func() Event)

	gate       *nav.Gate
	status     nav.AuthStatus
	session    *session.Session
	origin     station.Location
	authSeq    uint64
	restoreGen uint64
	navToken   uint64
	fetchSeq   uint64
	stations   []station.Station
	loading    bool
	submitting bool
	banner     string
	submitted  *updates.Submission
}

func New(opts Options, logger *slog.Logger) *Controller {
	delay := opts.SplashDelay
	if delay <= 0 {
		delay = nav.SplashDelay
	}
	c := &Controller{
		provider:    opts.Provider,
		restorer:    opts.Restorer,
		finder:      opts.Finder,
		prefs:       opts.Prefs,
		submitter:   opts.Submitter,
		splashDelay: delay,
		render:      opts.Render,
		log:         logger,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		gate:        nav.NewGate(opts.BypassAuth),
		status:      nav.Resolving,
		origin:      opts.Origin,
	}
	c.async = func(fn func() Event) {
		go func() {
			if ev := fn(); ev != nil {
				c.Post(ev)
			}
		}()
	}
	return c
}

// Run starts the splash timer and the session restore, then handles events until ctx
// is done.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)

	if c.provider != nil {
		changes, cancel := c.provider.Subscribe()
		defer cancel()
		go func() {
			for ch := range changes {
				c.Post(AuthChanged{Change: ch})
			}
		}()
	}

	timer := time.AfterFunc(c.splashDelay, func() { c.Post(SplashElapsed{}) })
	defer timer.Stop()

	c.startRestore()
	c.emit()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.Handle(ev)
		}
	}
}

// Post queues an event for Run. It returns without queuing once Run has exited.
func (c *Controller) Post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Handle applies one event and renders the result.
func (c *Controller) Handle(ev Event) {
	if ev == nil {
		return
	}
	switch e := ev.(type) {
	case SplashElapsed:
		c.gate.FinishSplash()
		c.evaluate()
	case restoreDone:
		c.restored(e)
	case AuthChanged:
		c.authChanged(e.Change)
	case RetryAuth:
		c.retryAuth()
	case Navigate:
		c.banner = ""
		c.request(e.To)
	case OpenStation:
		c.banner = ""
		c.openStation(e.Station)
	case ApplyPrefs:
		c.applyPrefs(e.Prefs)
	case SetOrigin:
		c.origin = e.Origin
		c.reload()
	case Refresh:
		c.banner = ""
		c.reload()
	case stationsLoaded:
		c.stationsLoaded(e)
	case SubmitUpdate:
		c.submit(e)
	case submitDone:
		c.submitDone(e)
	case SignIn:
		c.signIn(e)
	case SignUp:
		c.signUp(e)
	case signedUp:
		c.signedUp(e.result)
	case SignOut:
		c.signOut()
	case authFailed:
		c.log.Warn("Authentication action failed", "action", e.action, "error", e.err)
		c.banner = authMessage(e.action, e.err)
	default:
		c.log.Error("Unknown event", "event", fmt.Sprintf("%T", ev))
	}
	c.emit()
}

func (c *Controller) emit() {
	if c.render != nil {
		c.render(c.View())
	}
}

// setScreen runs after every gate call. A screen change invalidates pending results.
func (c *Controller) setScreen(prev, next nav.Screen) {
	if prev == next {
		return
	}
	c.navToken++
	c.submitting = false
	c.log.Debug("Screen changed", "from", prev, "to", next, "token", c.navToken)
	if next == nav.Home {
		c.reload()
	}
}

func (c *Controller) evaluate() {
	prev := c.gate.Screen()
	c.setScreen(prev, c.gate.Evaluate(c.status))
}

func (c *Controller) request(to nav.Screen) {
	prev := c.gate.Screen()
	next, err := c.gate.Request(to, c.status)
	if err != nil {
		c.log.Warn("Navigation refused", "from", prev, "to", to, "error", err)
		c.banner = err.Error()
		return
	}
	c.setScreen(prev, next)
}

func (c *Controller) openStation(st station.Station) {
	prev := c.gate.Screen()
	next, err := c.gate.OpenStation(st, c.status)
	if err != nil {
		c.log.Warn("Cannot open station", "station", st.ID, "error", err)
		c.banner = err.Error()
		return
	}
	c.setScreen(prev, next)
}

func (c *Controller) startRestore() {
	if c.restorer == nil {
		c.restored(restoreDone{gen: c.restoreGen, fromSeq: c.authSeq, outcome: session.Outcome{Status: session.Unauthenticated}})
		return
	}
	c.restoreGen++
	gen, from := c.restoreGen, c.authSeq
	ctx := c.ctx
	c.async(func() Event {
		return restoreDone{gen: gen, fromSeq: from, outcome: c.restorer.Restore(ctx)}
	})
}

func (c *Controller) restored(e restoreDone) {
	if e.gen != c.restoreGen || e.fromSeq != c.authSeq {
		metrics.StaleResponses.WithLabelValues("restore").Inc()
		c.log.Debug("Dropping superseded session restore", "status", e.outcome.Status)
		return
	}
	metrics.AuthRestores.WithLabelValues(e.outcome.Status.String()).Inc()

	switch e.outcome.Status {
	case session.Authenticated:
		c.session = e.outcome.Session
		c.status = nav.SignedIn
		c.reloadPrefs()
	case session.Unauthenticated:
		c.session = nil
		c.status = nav.SignedOut
	case session.Failed:
		c.session = nil
		c.status = nav.Failed
		c.banner = "Could not reach the session service. Retry?"
	}
	c.log.Info("Session restored", "status", e.outcome.Status, "attempts", e.outcome.Attempts)
	c.evaluate()
}

func (c *Controller) retryAuth() {
	if c.status != nav.Failed {
		return
	}
	c.banner = ""
	c.status = nav.Resolving
	c.startRestore()
}

func (c *Controller) authChanged(ch session.Change) {
	if ch.Seq <= c.authSeq {
		metrics.StaleResponses.WithLabelValues("auth").Inc()
		c.log.Debug("Dropping old auth change", "seq", ch.Seq, "applied", c.authSeq)
		return
	}
	c.authSeq = ch.Seq

	switch ch.Event {
	case session.EventSignedIn:
		c.session = ch.Session
		c.status = nav.SignedIn
		c.banner = ""
		c.reloadPrefs()
	case session.EventSignedOut:
		c.session = nil
		c.status = nav.SignedOut
		c.reloadPrefs()
	}
	c.log.Info("Auth changed", "event", ch.Event, "seq", ch.Seq)
	c.evaluate()
}

// reloadPrefs switches to the preferences of the signed-in user, or to the device
// preferences when nobody is.
func (c *Controller) reloadPrefs() {
	if c.prefs == nil {
		return
	}
	key := prefs.KeyFor("")
	if c.session != nil {
		key = prefs.KeyFor(strconv.FormatInt(c.session.UserID, 10))
	}
	if err := c.prefs.Switch(c.ctx, key); err != nil {
		c.log.Error("Failed to load preferences", "error", err)
	}
}

func (c *Controller) applyPrefs(p prefs.Preferences) {
	if c.prefs == nil {
		return
	}
	if err := c.prefs.Apply(c.ctx, p); err != nil {
		c.log.Error("Failed to apply preferences", "error", err)
		c.banner = "Could not save preferences"
		return
	}
	c.banner = ""
	c.reload()
}

func (c *Controller) currentPrefs() prefs.Preferences {
	if c.prefs == nil {
		return prefs.Defaults()
	}
	return c.prefs.Current()
}

// reload fetches the station list when the home screen is up.
func (c *Controller) reload() {
	if c.gate.Screen() != nav.Home || c.finder == nil {
		return
	}
	c.fetchSeq++
	c.loading = true
	token, seq := c.navToken, c.fetchSeq
	ctx, origin, p := c.ctx, c.origin, c.currentPrefs()
	c.async(func() Event {
		stations, err := c.finder.Nearby(ctx, origin, p)
		return stationsLoaded{navToken: token, fetchSeq: seq, stations: stations, err: err}
	})
}

func (c *Controller) stationsLoaded(e stationsLoaded) {
	if e.navToken != c.navToken || e.fetchSeq != c.fetchSeq {
		metrics.StaleResponses.WithLabelValues("stations").Inc()
		c.log.Debug("Dropping stale station list", "token", e.navToken, "current", c.navToken)
		return
	}
	c.loading = false
	c.stations = e.stations
	if e.err != nil {
		c.log.Error("Failed to load stations", "error", e.err)
		c.banner = "Could not load stations"
	}
}

func (c *Controller) submit(e SubmitUpdate) {
	if c.gate.Screen() != nav.StationDetails || c.submitter == nil || c.submitting {
		return
	}
	st, ok := c.gate.Selected()
	if !ok {
		return
	}

	var userID int64
	if c.session != nil {
		userID = c.session.UserID
	}
	sub := updates.FromStation(st, userID)
	sub.NewPrice = e.Price
	sub.Note = e.Note

	c.banner = ""
	c.submitting = true
	token, ctx := c.navToken, c.ctx
	c.async(func() Event {
		saved, err := c.submitter.Submit(ctx, sub)
		return submitDone{navToken: token, sub: saved, err: err}
	})
}

func (c *Controller) submitDone(e submitDone) {
	if e.navToken != c.navToken {
		metrics.StaleResponses.WithLabelValues("update").Inc()
		c.log.Debug("Dropping stale submission result", "token", e.navToken, "current", c.navToken)
		return
	}
	c.submitting = false
	if e.err != nil {
		metrics.StationUpdates.WithLabelValues(metrics.OutcomeError).Inc()
		c.banner = submitMessage(e.err)
		return
	}
	metrics.StationUpdates.WithLabelValues(metrics.OutcomeOK).Inc()
	sub := e.sub
	c.submitted = &sub
	c.request(nav.StationUpdateSubmitted)
}

func (c *Controller) signIn(e SignIn) {
	if c.provider == nil {
		return
	}
	ctx := c.ctx
	c.async(func() Event {
		if _, err := c.provider.SignIn(ctx, e.Email, e.Password); err != nil {
			return authFailed{action: "sign in", err: err}
		}
		return nil
	})
}

func (c *Controller) signUp(e SignUp) {
	if c.provider == nil {
		return
	}
	ctx := c.ctx
	c.async(func() Event {
		res, err := c.provider.SignUp(ctx, e.Email, e.Password, e.FullName)
		if err != nil {
			return authFailed{action: "sign up", err: err}
		}
		return signedUp{result: res}
	})
}

func (c *Controller) signedUp(res session.SignUpResult) {
	if !res.NeedsEmailConfirmation {
		return
	}
	c.banner = "Check your email to confirm your account, then sign in"
	c.request(nav.Login)
}

func (c *Controller) signOut() {
	if c.provider == nil {
		return
	}
	ctx := c.ctx
	c.async(func() Event {
		if err := c.provider.SignOut(ctx); err != nil {
			return authFailed{action: "sign out", err: err}
		}
		return nil
	})
}

func authMessage(action string, err error) string {
	var msg string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "the session service did not answer"
	default:
		msg = err.Error()
	}
	return fmt.Sprintf("Could not %s: %s", action, msg)
}

func submitMessage(err error) string {
	if errors.Is(err, updates.ErrInvalid) {
		return err.Error()
	}
	return "Could not submit the update, try again"
}
