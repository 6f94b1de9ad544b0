package app

import (
	"github.com/waysave/waysave/internal/nav"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/session"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
)

// Event is an input to the controller. Presentation layers post the exported events;
// the others carry the results of async work.
type Event interface {
	event()
}

// SplashElapsed ends the splash window.
type SplashElapsed struct{}

// AuthChanged delivers a session change notification.
type AuthChanged struct {
	Change session.Change
}

// Navigate requests a screen.
type Navigate struct {
	To nav.Screen
}

// OpenStation shows the details of a station from the home list.
type OpenStation struct {
	Station station.Station
}

// ApplyPrefs replaces the preferences.
type ApplyPrefs struct {
	Prefs prefs.Preferences
}

// SetOrigin moves the search center.
type SetOrigin struct {
	Origin station.Location
}

// Refresh reloads the station list.
type Refresh struct{}

// SubmitUpdate reports a price or a note for the selected station.
type SubmitUpdate struct {
	Price *float64
	Note  *string
}

// RetryAuth restarts the session restore after it failed.
type RetryAuth struct{}

type SignIn struct {
	Email    string
	Password string
}

type SignUp struct {
	Email    string
	Password string
	FullName string
}

type SignOut struct{}

type restoreDone struct {
	gen     uint64
	fromSeq uint64
	outcome session.Outcome
}

type stationsLoaded struct {
	navToken uint64
	fetchSeq uint64
	stations []station.Station
	err      error
}

type submitDone struct {
	navToken uint64
	sub      updates.Submission
	err      error
}

type authFailed struct {
	action string
	err    error
}

type signedUp struct {
	result session.SignUpResult
}

func (SplashElapsed) event()  {}
func (AuthChanged) event()    {}
func (Navigate) event()       {}
func (OpenStation) event()    {}
func (ApplyPrefs) event()     {}
func (SetOrigin) event()      {}
func (Refresh) event()        {}
func (SubmitUpdate) event()   {}
func (RetryAuth) event()      {}
func (SignIn) event()         {}
func (SignUp) event()         {}
func (SignOut) event()        {}
func (restoreDone) event()    {}
func (stationsLoaded) event() {}
func (submitDone) event()     {}
func (authFailed) event()     {}
func (signedUp) event()       {}
