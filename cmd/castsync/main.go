package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/config"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" default:"config.toml" env:"CASTSYNC_CONFIG_PATH" description:"path to the TOML configuration file"`
	Debug      bool   `long:"debug" description:"enable debug logging"`
	NoBanner   bool   `long:"no-banner" description:"don't print the banner on startup"`

	Download   DownloadCommand   `command:"download" description:"download the newest episodes of programs"`
	Feed       FeedCommand       `command:"feed" description:"generate podcast feeds for programs"`
	Programs   ProgramsCommand   `command:"programs" description:"list all programs"`
	Authors    AuthorsCommand    `command:"authors" description:"list team members across programs"`
	AuthorFeed AuthorFeedCommand `command:"author-feed" description:"generate a feed of all episodes by one team member"`
	FromFeed   FromFeedCommand   `command:"from-feed" description:"download the enclosures of a generated feed"`
	Login      LoginCommand      `command:"login" description:"log in and store the access token"`
	Logout     LogoutCommand     `command:"logout" description:"forget the stored access token"`
	Serve      ServeCommand      `command:"serve" description:"serve feeds and media, refreshing them on a schedule"`
}

const banner = `
                _
  __ __ _  ___ | |_  ___ _  _  _ _   __
 / _/ _' |(_-< |  _|(_-<| || || ' \ / _|
 \__\__,_|/__/  \__|/__/ \_, ||_||_|\__|
                         |__/
`

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var opts Opts

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				parser.WriteHelp(os.Stdout)
				os.Exit(0)
			}
			log.WithError(err).Error("failed to parse command line arguments")
			os.Exit(2)
		}

		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "config.toml" {
		log.Debug("no configuration file, using defaults")
		return config.Default(), nil
	}

	log.Debugf("loading configuration %q", path)
	return config.LoadConfig(path)
}

// run prepares the process for a command and invokes fn with a context canceled on SIGINT/SIGTERM.
// configure applies command line overrides before the components are wired.
func run(configure func(cfg *config.Config), fn func(ctx context.Context, app *App) error) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration file")
	}

	if configure != nil {
		configure(cfg)
	}

	closeLog, err := setupLogging(cfg.Log, opts.Debug || cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	if !opts.NoBanner {
		log.Info(banner)
	}

	log.WithFields(log.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
	}).Info("running castsync")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize")
	}

	return fn(ctx, app)
}
