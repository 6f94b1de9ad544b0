// Package nav decides which screen is displayed given the authentication state and the
// screen the user asked for.
package nav

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SplashDelay is how long the splash screen stays up after a cold start.
const SplashDelay = 1500 * time.Millisecond

var (
	ErrIllegalTransition = errors.New("illegal screen transition")
	ErrNoStationSelected = errors.New("no station selected")
	ErrUnknownScreen     = errors.New("unknown screen")
)

type Screen int

const (
	Splash Screen = iota
	Login
	Signup
	Home
	Filters
	StationDetails
	StationUpdateSubmitted
)

var screenNames = [...]string{
	Splash:                 "splash",
	Login:                  "login",
	Signup:                 "signup",
	Home:                   "home",
	Filters:                "filters",
	StationDetails:         "station-details",
	StationUpdateSubmitted: "station-update-submitted",
}

func (s Screen) String() string {
	if s < 0 || int(s) >= len(screenNames) {
		return fmt.Sprintf("screen(%d)", int(s))
	}
	return screenNames[s]
}

// ParseScreen maps a screen name onto its Screen.
func ParseScreen(name string) (Screen, error) {
	for i, n := range screenNames {
		if strings.EqualFold(n, name) {
			return Screen(i), nil
		}
	}
	return Splash, fmt.Errorf("%w: %q", ErrUnknownScreen, name)
}

type Class int

const (
	Neutral Class = iota
	RequiresAuth
	GuestOnly
)

// Classify tells whether a screen needs a session, must not be shown to a signed-in
// user, or neither.
func Classify(s Screen) Class {
	switch s {
	case Home, Filters, StationDetails, StationUpdateSubmitted:
		return RequiresAuth
	case Splash, Login, Signup:
		return GuestOnly
	}
	return Neutral
}

// AuthStatus is the projection of the session layer the gate needs.
type AuthStatus int

const (
	Resolving AuthStatus = iota
	SignedIn
	SignedOut
	Failed
)

func (a AuthStatus) String() string {
	switch a {
	case Resolving:
		return "resolving"
	case SignedIn:
		return "signed-in"
	case SignedOut:
		return "signed-out"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("auth(%d)", int(a))
}

var transitions = map[Screen][]Screen{
	Login:                  {Home, Signup},
	Signup:                 {Login, Home},
	Home:                   {Filters, StationDetails},
	Filters:                {Home},
	StationDetails:         {Home, StationUpdateSubmitted},
	StationUpdateSubmitted: {Home},
}

// Allowed reports whether the user may ask to move from one screen to another.
func Allowed(from, to Screen) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
