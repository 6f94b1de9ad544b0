package nav

import (
	"fmt"

	"github.com/waysave/waysave/internal/station"
)

// Gate is the navigation state machine. It is not safe for concurrent use; the owner
// serializes calls.
type Gate struct {
	screen     Screen
	splashDone bool
	bypass     bool
	selected   *station.Station
}

// NewGate starts on the splash screen. bypass treats the user as signed in whatever the
// session says, for development.
func NewGate(bypass bool) *Gate {
	return &Gate{screen: Splash, bypass: bypass}
}

func (g *Gate) Screen() Screen { return g.screen }

// Selected returns the station shown on the detail screen, if any.
func (g *Gate) Selected() (station.Station, bool) {
	if g.selected == nil {
		return station.Station{}, false
	}
	return *g.selected, true
}

// FinishSplash ends the splash window. Call Evaluate afterwards.
func (g *Gate) FinishSplash() {
	g.splashDone = true
}

func (g *Gate) authed(status AuthStatus) bool {
	return g.bypass || status == SignedIn
}

func (g *Gate) holding(status AuthStatus) bool {
	return !g.splashDone || (status == Resolving && !g.bypass)
}

// Evaluate re-applies the routing rules to the current screen. It runs whenever the
// authentication state changes and returns the screen to display.
func (g *Gate) Evaluate(status AuthStatus) Screen {
	if g.holding(status) {
		return g.screen
	}
	g.guard(status)
	return g.screen
}

func (g *Gate) guard(status AuthStatus) {
	authed := g.authed(status)
	switch {
	case !authed && Classify(g.screen) == RequiresAuth:
		g.screen = Login
		g.selected = nil
	case authed && Classify(g.screen) == GuestOnly:
		g.screen = Home
	}
	if g.screen == Splash {
		if authed {
			g.screen = Home
		} else {
			g.screen = Login
		}
	}
}

// Request asks for an explicit transition. While the splash window is open or the
// session is still resolving the request is dropped and the current screen returned.
// Transitions the screen graph does not allow return ErrIllegalTransition and leave
// the state untouched.
func (g *Gate) Request(to Screen, status AuthStatus) (Screen, error) {
	if g.holding(status) {
		return g.screen, nil
	}
	if !Allowed(g.screen, to) {
		return g.screen, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, g.screen, to)
	}
	if to == StationDetails && g.selected == nil {
		return g.screen, ErrNoStationSelected
	}

	if to == Home {
		g.selected = nil
	}
	g.screen = to
	g.guard(status)
	return g.screen, nil
}

// OpenStation selects st and moves to its detail screen.
func (g *Gate) OpenStation(st station.Station, status AuthStatus) (Screen, error) {
	if g.holding(status) {
		return g.screen, nil
	}
	if !Allowed(g.screen, StationDetails) {
		return g.screen, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, g.screen, StationDetails)
	}
	if err := st.Validate(); err != nil {
		return g.screen, err
	}

	prev := g.selected
	g.selected = &st
	screen, err := g.Request(StationDetails, status)
	if err != nil {
		g.selected = prev
	}
	return screen, err
}
