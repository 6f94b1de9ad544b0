package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "email",
			Usage:    "Account email",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Account password, read from stdin when omitted",
			EnvVars: []string{"WAYSAVE_PASSWORD"},
		},
	}
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account and sign in",
		Flags: append(credentialFlags(), &cli.StringFlag{
			Name:  "name",
			Usage: "Full name",
		}),
		Action: signupAction,
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Sign in on this device",
		Flags:  credentialFlags(),
		Action: loginAction,
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out on this device",
		Action: logoutAction,
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Print the signed-in account",
		Action: whoamiAction,
	}
}

func password(c *cli.Context) (string, error) {
	if pw := c.String("password"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func signupAction(c *cli.Context) error {
	pw, err := password(c)
	if err != nil {
		return err
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.provider().SignUp(c.Context, c.String("email"), pw, c.String("name"))
	if err != nil {
		return err
	}
	if res.NeedsEmailConfirmation {
		fmt.Println("Check your email to confirm your account, then sign in")
		return nil
	}
	fmt.Println("Signed in as", res.Session.Email)
	return nil
}

func loginAction(c *cli.Context) error {
	pw, err := password(c)
	if err != nil {
		return err
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := e.provider().SignIn(c.Context, c.String("email"), pw)
	if err != nil {
		return err
	}
	fmt.Println("Signed in as", s.Email)
	return nil
}

func logoutAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.provider().SignOut(c.Context); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func whoamiAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	out := e.resolver(e.provider()).Restore(c.Context)
	switch {
	case out.Session != nil:
		fmt.Printf("%s (expires %s)\n", out.Session.Email, out.Session.ExpiresAt.Format("2006-01-02 15:04"))
	case out.Err != nil:
		return fmt.Errorf("could not restore the session: %w", out.Err)
	default:
		fmt.Println("Not signed in")
	}
	return nil
}
