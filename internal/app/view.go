package app

import (
	"github.com/waysave/waysave/internal/nav"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/ranker"
	"github.com/waysave/waysave/internal/session"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
)

// View is a snapshot of the client state for rendering.
type View struct {
	Screen     nav.Screen
	Auth       nav.AuthStatus
	Session    *session.Session
	Prefs      prefs.Preferences
	Origin     station.Location
	Stations   []station.Station
	BestValue  *station.Station
	Loading    bool
	Submitting bool
	Selected   *station.Station
	Submitted  *updates.Submission
	Banner     string

	// CanRetryAuth offers the manual retry after a failed restore.
	CanRetryAuth bool
}

// View ranks the fetched stations with the current preferences. Ranking happens here
// so a preference change re-orders the list before the refetch returns.
func (c *Controller) View() View {
	p := c.currentPrefs()
	v := View{
		Screen:       c.gate.Screen(),
		Auth:         c.status,
		Session:      c.session,
		Prefs:        p,
		Origin:       c.origin,
		Loading:      c.loading,
		Submitting:   c.submitting,
		Submitted:    c.submitted,
		Banner:       c.banner,
		CanRetryAuth: c.status == nav.Failed,
	}
	if v.Screen == nav.Home {
		v.Stations = ranker.Rank(c.stations, p)
		if best, ok := ranker.BestValue(v.Stations); ok {
			v.BestValue = &best
		}
	}
	if st, ok := c.gate.Selected(); ok {
		v.Selected = &st
	}
	return v
}
