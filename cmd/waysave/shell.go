package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/internal/app"
	"github.com/waysave/waysave/internal/nav"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/updates"
)

const shellHelp = `Commands:
  login <email> <password>          sign in
  signup <email> <password> [name]  create an account
  logout                            sign out
  retry                             retry the session restore
  go <screen>                       login, signup, home, filters
  open <n>                          show station n of the list
  back                              return to the station list
  set key=value...                  change preferences (tab, fuel, mode, radius, sensitivity, connectors.<name>)
  where <place>                     search around a place
  refresh                           reload the station list
  report price <value> [note]       report a price for the open station
  report note <text>                report a note for the open station
  help                              show this help
  quit                              leave the shell`

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Interactive client",
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	holder, err := prefs.Load(ctx, e.storage, prefs.KeyFor(""), e.log)
	if err != nil {
		return err
	}
	provider := e.provider()

	var (
		mu   sync.Mutex
		last app.View
		key  string
	)
	ctrl := app.New(app.Options{
		Provider:    provider,
		Restorer:    e.resolver(provider),
		Finder:      e.finder(),
		Prefs:       holder,
		Submitter:   updates.NewSubmitter(e.storage, e.log),
		Origin:      e.origin(),
		SplashDelay: e.cfg.SplashDelay,
		BypassAuth:  e.cfg.Auth.Skip,
		Render: func(v app.View) {
			mu.Lock()
			defer mu.Unlock()
			last = v
			if k := viewKey(v); k != key {
				key = k
				printView(os.Stdout, v)
			}
		},
	}, e.log)

	errc := make(chan error, 1)
	go func() { errc <- ctrl.Run(ctx) }()

	geo := e.geocoder()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "quit", "exit":
			cancel()
			<-errc
			return nil
		case "help":
			fmt.Println(shellHelp)
			continue
		case "where":
			place, err := geo.Lookup(ctx, rest)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			fmt.Println("Searching around", place.Name)
			ctrl.Post(app.SetOrigin{Origin: place.Location})
			continue
		}

		mu.Lock()
		v := last
		mu.Unlock()
		ev, err := parseCommand(line, v)
		if err != nil {
			fmt.Println("!", err)
			continue
		}
		ctrl.Post(ev)
	}

	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return scanner.Err()
}

// parseCommand turns a shell line into a controller event. v is the state the user
// is looking at.
func parseCommand(line string, v app.View) (app.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty command")
	}
	args := fields[1:]

	switch fields[0] {
	case "login":
		if len(args) != 2 {
			return nil, errors.New("usage: login <email> <password>")
		}
		return app.SignIn{Email: args[0], Password: args[1]}, nil
	case "signup":
		if len(args) < 2 {
			return nil, errors.New("usage: signup <email> <password> [name]")
		}
		return app.SignUp{Email: args[0], Password: args[1], FullName: strings.Join(args[2:], " ")}, nil
	case "logout":
		return app.SignOut{}, nil
	case "retry":
		return app.RetryAuth{}, nil
	case "refresh":
		return app.Refresh{}, nil
	case "back":
		return app.Navigate{To: nav.Home}, nil
	case "go":
		if len(args) != 1 {
			return nil, errors.New("usage: go <screen>")
		}
		to, err := nav.ParseScreen(args[0])
		if err != nil {
			return nil, err
		}
		return app.Navigate{To: to}, nil
	case "open":
		if len(args) != 1 {
			return nil, errors.New("usage: open <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(v.Stations) {
			return nil, fmt.Errorf("no station %q in the list", args[0])
		}
		return app.OpenStation{Station: v.Stations[n-1]}, nil
	case "set":
		p, err := applySettings(v.Prefs, args)
		if err != nil {
			return nil, err
		}
		return app.ApplyPrefs{Prefs: p}, nil
	case "report":
		return parseReport(args)
	}
	return nil, fmt.Errorf("unknown command %q, try help", fields[0])
}

func parseReport(args []string) (app.Event, error) {
	if len(args) < 2 {
		return nil, errors.New("usage: report price <value> [note] | report note <text>")
	}
	switch args[0] {
	case "price":
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", args[1])
		}
		ev := app.SubmitUpdate{Price: &price}
		if len(args) > 2 {
			note := strings.Join(args[2:], " ")
			ev.Note = &note
		}
		return ev, nil
	case "note":
		note := strings.Join(args[1:], " ")
		return app.SubmitUpdate{Note: &note}, nil
	}
	return nil, fmt.Errorf("cannot report %q", args[0])
}

// viewKey changes whenever the rendered screen would.
func viewKey(v app.View) string {
	selected := ""
	if v.Selected != nil {
		selected = v.Selected.ID
	}
	return fmt.Sprintf("%s|%s|%s|%t|%t|%d|%s|%+v|%v", v.Screen, v.Auth, v.Banner, v.Loading, v.Submitting, len(v.Stations), selected, v.Prefs, v.Origin)
}

func printView(w io.Writer, v app.View) {
	who := v.Auth.String()
	if v.Session != nil {
		who = v.Session.Email
	}
	fmt.Fprintf(w, "\n== %s (%s) ==\n", v.Screen, who)
	if v.Banner != "" {
		fmt.Fprintf(w, "! %s\n", v.Banner)
	}
	if v.CanRetryAuth {
		fmt.Fprintln(w, "  type retry to try again")
	}

	switch v.Screen {
	case nav.Splash:
		fmt.Fprintln(w, "WaySave")
	case nav.Login:
		fmt.Fprintln(w, "login <email> <password>, or go signup")
	case nav.Signup:
		fmt.Fprintln(w, "signup <email> <password> [name], or go login")
	case nav.Home:
		fmt.Fprintf(w, "%s stations by %s within %g km of %.4f,%.4f\n", v.Prefs.ActiveTab, v.Prefs.Mode, v.Prefs.MaxDistanceKm, v.Origin.Lat, v.Origin.Lng)
		if v.Loading {
			fmt.Fprintln(w, "loading...")
			return
		}
		if len(v.Stations) == 0 {
			fmt.Fprintln(w, "no stations match your filters")
			return
		}
		for i, st := range v.Stations {
			marker := ""
			if v.BestValue != nil && v.BestValue.ID == st.ID {
				marker = " *"
			}
			dist := "?"
			if st.DistanceKm != nil {
				dist = fmt.Sprintf("%.1f km", *st.DistanceKm)
			}
			fmt.Fprintf(w, "%2d. %s  %s  %s%s\n", i+1, st.Name, dist, st.PriceLabel, marker)
		}
	case nav.Filters:
		fmt.Fprintf(w, "tab %s, fuel %s, mode %s, radius %g km, sensitivity %g, connectors %s\n",
			v.Prefs.ActiveTab, v.Prefs.FuelType, v.Prefs.Mode, v.Prefs.MaxDistanceKm, v.Prefs.PriceSensitivity,
			strings.Join(v.Prefs.EnabledConnectors(), ","))
		fmt.Fprintln(w, "set key=value..., then back")
	case nav.StationDetails:
		if st := v.Selected; st != nil {
			fmt.Fprintf(w, "%s\n%s\nprice: %s\n", st.Name, st.Address, st.PriceLabel)
			if len(st.Connectors) > 0 {
				fmt.Fprintf(w, "connectors: %s\n", strings.Join(st.Connectors, ", "))
			}
		}
		if v.Submitting {
			fmt.Fprintln(w, "sending report...")
		}
	case nav.StationUpdateSubmitted:
		fmt.Fprintln(w, "Thanks, your report was saved.")
		if s := v.Submitted; s != nil {
			fmt.Fprintf(w, "reference %s\n", s.ID)
		}
	}
}
