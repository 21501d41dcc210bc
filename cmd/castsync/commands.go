package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/config"
	"github.com/castsync/castsync/services/update"
)

type programArgs struct {
	Programs []string `positional-arg-name:"program-id" description:"program ids, defaults to the configured list"`
}

type DownloadCommand struct {
	Last     int  `long:"last" short:"n" description:"number of newest episodes to download (0 = all)"`
	FreeOnly bool `long:"free-only" description:"don't log in, skip patron episodes"`

	Args programArgs `positional-args:"yes"`
}

func (c *DownloadCommand) Execute([]string) error {
	configure := func(cfg *config.Config) {
		if c.Last > 0 {
			cfg.Download.MaxEpisodes = c.Last
		}
		if c.FreeOnly {
			cfg.Download.FreeOnly = true
		}
	}

	return run(configure, func(ctx context.Context, app *App) error {
		ids, err := app.programIDs(c.Args.Programs)
		if err != nil {
			return err
		}

		unlock, err := app.Lock()
		if err != nil {
			return err
		}
		defer unlock()

		summaries, err := app.DownloadAll(ctx, ids)
		for _, summary := range summaries {
			fmt.Fprintln(os.Stdout, renderSummary(summary))
		}

		return err
	})
}

type FeedCommand struct {
	Last          int  `long:"last" short:"n" description:"number of newest episodes in the feed"`
	IncludePatron bool `long:"include-patron" description:"include patron episodes"`

	Args programArgs `positional-args:"yes"`
}

func (c *FeedCommand) Execute([]string) error {
	configure := func(cfg *config.Config) {
		if c.Last > 0 {
			cfg.Feed.MaxEpisodes = c.Last
		}
		if c.IncludePatron {
			cfg.Feed.IncludePatron = true
		}
	}

	return run(configure, func(ctx context.Context, app *App) error {
		ids, err := app.programIDs(c.Args.Programs)
		if err != nil {
			return err
		}

		unlock, err := app.Lock()
		if err != nil {
			return err
		}
		defer unlock()

		results, err := app.updater.Feeds(ctx, ids)
		if len(results) > 0 {
			fmt.Fprintln(os.Stdout, renderFeeds(results))
		}

		return err
	})
}

type ProgramsCommand struct{}

func (c *ProgramsCommand) Execute([]string) error {
	return run(nil, func(ctx context.Context, app *App) error {
		programs, err := app.catalog.ListPrograms(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, renderPrograms(programs))
		return nil
	})
}

type AuthorsCommand struct {
	Args programArgs `positional-args:"yes"`
}

func (c *AuthorsCommand) Execute([]string) error {
	return run(nil, func(ctx context.Context, app *App) error {
		ids, err := app.programIDs(c.Args.Programs)
		if err != nil {
			return err
		}

		authors, err := app.updater.Authors(ctx, ids)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, renderAuthors(authors))
		return nil
	})
}

type AuthorFeedCommand struct {
	Last int `long:"last" short:"n" description:"number of newest episodes in the feed"`

	Args struct {
		Email    string   `positional-arg-name:"email" required:"yes"`
		Programs []string `positional-arg-name:"program-id"`
	} `positional-args:"yes"`
}

func (c *AuthorFeedCommand) Execute([]string) error {
	configure := func(cfg *config.Config) {
		if c.Last > 0 {
			cfg.Feed.MaxEpisodes = c.Last
		}
	}

	return run(configure, func(ctx context.Context, app *App) error {
		ids, err := app.programIDs(c.Args.Programs)
		if err != nil {
			return err
		}

		unlock, err := app.Lock()
		if err != nil {
			return err
		}
		defer unlock()

		result, err := app.updater.AuthorFeed(ctx, c.Args.Email, ids)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, renderFeeds([]*update.FeedResult{result}))
		return nil
	})
}

type FromFeedCommand struct {
	Args struct {
		Path string `positional-arg-name:"feed.xml" required:"yes"`
	} `positional-args:"yes"`
}

func (c *FromFeedCommand) Execute([]string) error {
	return run(nil, func(ctx context.Context, app *App) error {
		unlock, err := app.Lock()
		if err != nil {
			return err
		}
		defer unlock()

		summary, err := app.updater.FromFeed(ctx, c.Args.Path)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, renderSummary(summary))
		if !summary.OK() {
			return errors.Errorf("%d episode(s) failed", len(summary.Failures()))
		}
		return nil
	})
}

type LoginCommand struct{}

func (c *LoginCommand) Execute([]string) error {
	return run(nil, func(ctx context.Context, app *App) error {
		cred, err := app.auth.Login(ctx)
		if err != nil {
			return err
		}

		log.WithField("expires_at", cred.ExpiresAt.Local().Format(time.RFC3339)).Info("logged in")
		return nil
	})
}

type LogoutCommand struct{}

func (c *LogoutCommand) Execute([]string) error {
	return run(nil, func(ctx context.Context, app *App) error {
		if err := app.auth.Logout(); err != nil {
			return err
		}

		log.Info("logged out")
		return nil
	})
}
