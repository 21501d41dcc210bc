package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/castsync/castsync/pkg/auth"
	"github.com/castsync/castsync/pkg/config"
)

// prompter asks for login details on the terminal.
type prompter struct {
	in           io.Reader
	out          io.Writer
	interactive  bool
	readPassword func() ([]byte, error)
	getenv       func(string) string
}

func newPrompter() *prompter {
	fd := int(os.Stdin.Fd())

	return &prompter{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(fd),
		readPassword: func() ([]byte, error) {
			return term.ReadPassword(fd)
		},
		getenv: os.Getenv,
	}
}

// identity resolves the login from the environment, then the configuration, then the terminal.
func (p *prompter) identity(cfg config.Auth) auth.IdentityFunc {
	return func(ctx context.Context) (auth.Identity, error) {
		id := auth.Identity{
			Email:    firstNonEmpty(p.getenv("CASTSYNC_EMAIL"), cfg.Email),
			Password: firstNonEmpty(p.getenv("CASTSYNC_PASSWORD"), cfg.Password),
		}

		if id.Email != "" && id.Password != "" {
			return id, nil
		}

		if !p.interactive {
			return id, errors.New("login details are not configured and the terminal is not interactive")
		}

		if id.Email == "" {
			fmt.Fprint(p.out, "Email: ")
			line, err := bufio.NewReader(p.in).ReadString('\n')
			if err != nil && line == "" {
				return id, errors.Wrap(err, "failed to read email")
			}
			id.Email = strings.TrimSpace(line)
		}

		if id.Password == "" {
			fmt.Fprint(p.out, "Password: ")
			password, err := p.readPassword()
			fmt.Fprintln(p.out)
			if err != nil {
				return id, errors.Wrap(err, "failed to read password")
			}
			id.Password = string(password)
		}

		if id.Email == "" || id.Password == "" {
			return id, errors.New("email and password are required")
		}

		return id, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
