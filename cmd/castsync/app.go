package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/auth"
	"github.com/castsync/castsync/pkg/catalog"
	"github.com/castsync/castsync/pkg/config"
	"github.com/castsync/castsync/pkg/creds"
	"github.com/castsync/castsync/pkg/download"
	"github.com/castsync/castsync/pkg/feed"
	"github.com/castsync/castsync/pkg/fs"
	"github.com/castsync/castsync/pkg/naming"
	"github.com/castsync/castsync/pkg/remux"
	"github.com/castsync/castsync/pkg/retry"
	"github.com/castsync/castsync/services/update"
)

const lockName = ".castsync.lock"

// App holds the components wired from the configuration.
type App struct {
	cfg     *config.Config
	storage *fs.Local
	auth    *auth.Manager
	catalog *catalog.Client
	updater *update.Manager
	lock    *flock.Flock
}

// publicHostname is the base of the links written into feeds.
func publicHostname(cfg config.Server) string {
	hostname := strings.TrimSuffix(cfg.Hostname, "/")
	if path := strings.Trim(cfg.Path, "/"); path != "" {
		hostname = fmt.Sprintf("%s/%s", hostname, path)
	}
	return hostname
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	storage, err := fs.NewLocal(cfg.Server.DataDir, publicHostname(cfg.Server))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open data directory")
	}

	apiClient := &http.Client{Timeout: cfg.API.Timeout.Duration}

	authManager := auth.NewManager(
		cfg.API.AuthURL,
		creds.NewFile(cfg.Auth.TokenFile),
		newPrompter().identity(cfg.Auth),
		auth.WithClient(apiClient),
		auth.WithMargin(cfg.Auth.Margin.Duration),
		auth.WithTTL(cfg.Auth.TTL.Duration),
	)

	retryCfg := retry.DefaultConfig()
	if cfg.API.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.API.MaxRetries
	}

	client := catalog.New(catalog.Config{
		ContentURL:  cfg.API.ContentURL,
		GatewayURL:  cfg.API.GatewayURL,
		SiteURL:     cfg.API.SiteURL,
		PageSize:    cfg.API.PageSize,
		RequestRate: cfg.API.RequestRate,
		Retry:       retryCfg,
	}, authManager, apiClient)

	remuxCfg := cfg.Remux.Remuxer()

	// Media transfers may take long, only the wait for response headers is bounded
	mediaClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.API.Timeout.Duration,
		},
	}

	var strategist *download.Strategist
	if ffmpeg, err := remux.New(ctx, remuxCfg); err != nil {
		log.WithError(err).Warn("ffmpeg is not available, segmented episodes will fail")
		strategist = download.New(mediaClient, nil)
	} else {
		strategist = download.New(mediaClient, ffmpeg)
	}

	updater, err := update.NewUpdater(client, authManager, strategist, storage, naming.New(cfg.Location()), update.Options{
		Concurrency:    cfg.Download.Concurrency,
		MaxEpisodes:    cfg.Download.MaxEpisodes,
		FreeOnly:       cfg.Download.FreeOnly,
		RemuxExtension: remuxCfg.Extension(),
		Filters: update.Filters{
			Title:          cfg.Filters.Title,
			NotTitle:       cfg.Filters.NotTitle,
			Description:    cfg.Filters.Description,
			NotDescription: cfg.Filters.NotDescription,
			MinDuration:    cfg.Filters.MinDuration,
		},
		Feed: update.FeedOptions{
			Policy: feed.Policy{
				MaxEpisodes:   cfg.Feed.MaxEpisodes,
				IncludePatron: cfg.Feed.IncludePatron && !cfg.Download.FreeOnly,
			},
			Language:      cfg.Feed.Language,
			Category:      cfg.Feed.Category,
			Subcategories: cfg.Feed.Subcategories,
			Explicit:      cfg.Feed.Explicit,
			Author:        cfg.Feed.Author,
			GUIDPrefix:    cfg.Feed.GUIDPrefix,
			OPML:          cfg.Feed.OPML,
		},
		Hooks: cfg.Hooks,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		storage: storage,
		auth:    authManager,
		catalog: client,
		updater: updater,
		lock:    flock.New(filepath.Join(cfg.Server.DataDir, lockName)),
	}, nil
}

// Lock makes sure only one job at a time writes into the data directory.
func (a *App) Lock() (func(), error) {
	if err := os.MkdirAll(a.cfg.Server.DataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	ok, err := a.lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire job lock")
	}
	if !ok {
		return nil, errors.Errorf("another castsync job is running (lock %s)", a.lock.Path())
	}

	return func() {
		if err := a.lock.Unlock(); err != nil {
			log.WithError(err).Warn("failed to release job lock")
		}
	}, nil
}

// programIDs returns ids given on the command line, falling back to the configured list.
func (a *App) programIDs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	ids, err := a.cfg.ProgramIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("no programs given and none configured")
	}

	return ids, nil
}

// DownloadAll runs the download path for each program. A failing program doesn't stop the others.
func (a *App) DownloadAll(ctx context.Context, ids []string) ([]*update.Summary, error) {
	var (
		summaries []*update.Summary
		errs      *multierror.Error
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}

		summary, err := a.updater.Download(ctx, id)
		if err != nil {
			log.WithError(err).WithField("program_id", id).Error("download failed")
			errs = multierror.Append(errs, err)
			continue
		}

		summaries = append(summaries, summary)
		if !summary.OK() {
			errs = multierror.Append(errs, errors.Errorf("%s: %d episode(s) failed", id, len(summary.Failures())))
			if summary.Err != nil {
				errs = multierror.Append(errs, summary.Err)
			}
		}
	}

	return summaries, errs.ErrorOrNil()
}

// Batch downloads and regenerates feeds for every configured program.
func (a *App) Batch(ctx context.Context) error {
	unlock, err := a.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	ids, err := a.programIDs(nil)
	if err != nil {
		return err
	}

	var errs *multierror.Error

	summaries, err := a.DownloadAll(ctx, ids)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, summary := range summaries {
		log.WithField("program_id", summary.Program.ID).Info(summary.String())
	}

	if _, err := a.updater.Feeds(ctx, ids); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}
