package nav

import (
	"errors"
	"testing"

	"github.com/waysave/waysave/internal/station"
)

func testStation() station.Station {
	return station.Station{
		ID:       "fuel-1",
		Name:     "Circle K",
		Location: &station.Location{Lat: 53.3498, Lng: -6.2603},
		Category: station.Fuel,
	}
}

// signedInAt returns a gate past the splash window, sitting on screen.
func signedInAt(t *testing.T, screen Screen) *Gate {
	t.Helper()
	g := NewGate(false)
	g.FinishSplash()
	if got := g.Evaluate(SignedIn); got != Home {
		t.Fatalf("Evaluate() = %s, want home", got)
	}
	switch screen {
	case Home:
	case Filters:
		mustRequest(t, g, Filters, SignedIn)
	case StationDetails:
		if _, err := g.OpenStation(testStation(), SignedIn); err != nil {
			t.Fatalf("OpenStation() failed: %v", err)
		}
	case StationUpdateSubmitted:
		if _, err := g.OpenStation(testStation(), SignedIn); err != nil {
			t.Fatalf("OpenStation() failed: %v", err)
		}
		mustRequest(t, g, StationUpdateSubmitted, SignedIn)
	default:
		t.Fatalf("unsupported start screen %s", screen)
	}
	return g
}

func mustRequest(t *testing.T, g *Gate, to Screen, status AuthStatus) Screen {
	t.Helper()
	got, err := g.Request(to, status)
	if err != nil {
		t.Fatalf("Request(%s) failed: %v", to, err)
	}
	return got
}

func TestSplashResolvesToLoginOrHome(t *testing.T) {
	tests := []struct {
		status AuthStatus
		want   Screen
	}{
		{SignedOut, Login},
		{SignedIn, Home},
		{Failed, Login},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			g := NewGate(false)
			if got := g.Evaluate(tt.status); got != Splash {
				t.Errorf("before splash delay: Evaluate() = %s, want splash", got)
			}
			g.FinishSplash()
			if got := g.Evaluate(tt.status); got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHoldWhileResolving(t *testing.T) {
	g := NewGate(false)
	g.FinishSplash()

	if got := g.Evaluate(Resolving); got != Splash {
		t.Errorf("Evaluate(resolving) = %s, want splash", got)
	}
	if got := g.Evaluate(SignedIn); got != Home {
		t.Errorf("Evaluate(signed-in) = %s, want home", got)
	}
}

func TestBypassIgnoresResolution(t *testing.T) {
	g := NewGate(true)
	g.FinishSplash()

	if got := g.Evaluate(Resolving); got != Home {
		t.Errorf("Evaluate(resolving) with bypass = %s, want home", got)
	}
	if got := g.Evaluate(SignedOut); got != Home {
		t.Errorf("Evaluate(signed-out) with bypass = %s, want home", got)
	}
}

func TestGuestScreensUnreachableWhenSignedIn(t *testing.T) {
	g := signedInAt(t, Home)

	for _, to := range []Screen{Login, Signup, Splash} {
		got, err := g.Request(to, SignedIn)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("Request(%s) error = %v, want ErrIllegalTransition", to, err)
		}
		if got != Home {
			t.Errorf("Request(%s) = %s, want home", to, got)
		}
	}
}

func TestAuthLossForcesLogin(t *testing.T) {
	for _, screen := range []Screen{Home, Filters, StationDetails, StationUpdateSubmitted} {
		t.Run(screen.String(), func(t *testing.T) {
			g := signedInAt(t, screen)
			if got := g.Evaluate(SignedOut); got != Login {
				t.Errorf("Evaluate(signed-out) = %s, want login", got)
			}
			if _, ok := g.Selected(); ok {
				t.Error("selected station survived sign-out")
			}
		})
	}
}

func TestLoginRequiresSession(t *testing.T) {
	g := NewGate(false)
	g.FinishSplash()
	g.Evaluate(SignedOut)

	if got := mustRequest(t, g, Home, SignedOut); got != Login {
		t.Errorf("Request(home) while signed out = %s, want login", got)
	}
	if got := mustRequest(t, g, Signup, SignedOut); got != Signup {
		t.Errorf("Request(signup) = %s, want signup", got)
	}
	if got := mustRequest(t, g, Home, SignedIn); got != Home {
		t.Errorf("Request(home) after sign-up = %s, want home", got)
	}
}

func TestSignInEventMovesToHome(t *testing.T) {
	g := NewGate(false)
	g.FinishSplash()
	g.Evaluate(SignedOut)

	if got := g.Evaluate(SignedIn); got != Home {
		t.Errorf("Evaluate(signed-in) on login = %s, want home", got)
	}
}

func TestRequestsDroppedWhileHolding(t *testing.T) {
	g := NewGate(false)
	got, err := g.Request(Home, SignedIn)
	if err != nil || got != Splash {
		t.Errorf("Request during splash = %s, %v; want splash, nil", got, err)
	}

	g.FinishSplash()
	got, err = g.Request(Login, Resolving)
	if err != nil || got != Splash {
		t.Errorf("Request while resolving = %s, %v; want splash, nil", got, err)
	}
}

func TestDetailsRequireSelection(t *testing.T) {
	g := signedInAt(t, Home)

	got, err := g.Request(StationDetails, SignedIn)
	if !errors.Is(err, ErrNoStationSelected) {
		t.Errorf("Request(station-details) error = %v, want ErrNoStationSelected", err)
	}
	if got != Home {
		t.Errorf("Request(station-details) = %s, want home", got)
	}

	invalid := testStation()
	invalid.Location = nil
	if _, err := g.OpenStation(invalid, SignedIn); !errors.Is(err, station.ErrNoLocation) {
		t.Errorf("OpenStation(invalid) error = %v, want ErrNoLocation", err)
	}
	if g.Screen() != Home {
		t.Errorf("screen = %s, want home", g.Screen())
	}
}

func TestStationFlow(t *testing.T) {
	g := signedInAt(t, Home)

	got, err := g.OpenStation(testStation(), SignedIn)
	if err != nil || got != StationDetails {
		t.Fatalf("OpenStation() = %s, %v", got, err)
	}
	sel, ok := g.Selected()
	if !ok || sel.ID != "fuel-1" {
		t.Errorf("Selected() = %+v, %v", sel, ok)
	}

	if got := mustRequest(t, g, StationUpdateSubmitted, SignedIn); got != StationUpdateSubmitted {
		t.Errorf("Request(submitted) = %s", got)
	}
	if got := mustRequest(t, g, Home, SignedIn); got != Home {
		t.Errorf("Request(home) = %s", got)
	}
	if _, ok := g.Selected(); ok {
		t.Error("selection kept after returning home")
	}
}

func TestOpenStationOnlyFromHome(t *testing.T) {
	g := signedInAt(t, Filters)
	if _, err := g.OpenStation(testStation(), SignedIn); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("OpenStation() from filters error = %v, want ErrIllegalTransition", err)
	}
	if _, ok := g.Selected(); ok {
		t.Error("failed OpenStation() left a selection")
	}
}

func TestClassifyIsExhaustive(t *testing.T) {
	for i := range screenNames {
		s := Screen(i)
		if Classify(s) == Neutral {
			t.Errorf("screen %s is unclassified", s)
		}
	}
}

func TestParseScreen(t *testing.T) {
	for i, name := range screenNames {
		got, err := ParseScreen(name)
		if err != nil {
			t.Fatalf("ParseScreen(%q) failed: %v", name, err)
		}
		if got != Screen(i) {
			t.Errorf("ParseScreen(%q) = %s", name, got)
		}
	}
	if _, err := ParseScreen("settings"); !errors.Is(err, ErrUnknownScreen) {
		t.Errorf("ParseScreen(settings) error = %v", err)
	}
}
