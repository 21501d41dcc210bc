package main

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ServeCommand struct {
	NoSchedule   bool `long:"no-schedule" description:"only serve files, never refresh them"`
	NoInitialRun bool `long:"no-initial-run" description:"wait for the first scheduled run instead of refreshing on startup"`
}

// cronLogger forwards cron messages to logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(cronFields(keysAndValues)).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithError(err).WithFields(cronFields(keysAndValues)).Error(msg)
}

func cronFields(keysAndValues []interface{}) log.Fields {
	fields := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}

func (c *ServeCommand) Execute([]string) error {
	return run(nil, func(ctx context.Context, app *App) error {
		group, ctx := errgroup.WithContext(ctx)

		batch := func() {
			if err := app.Batch(ctx); err != nil {
				log.WithError(err).Error("scheduled run finished with errors")
				return
			}
			log.Info("scheduled run finished")
		}

		if !c.NoSchedule {
			var (
				logger    = cronLogger{}
				scheduler = cron.New(cron.WithLogger(logger))
				schedule  = app.cfg.CronSchedule()
			)

			// One batch at a time, the initial run included
			job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(batch))

			if _, err := scheduler.AddJob(schedule, job); err != nil {
				return errors.Wrapf(err, "can't create cron task for %q", schedule)
			}

			group.Go(func() error {
				defer func() {
					log.Info("shutting down cron")
					<-scheduler.Stop().Done()
				}()

				log.Infof("-> refreshing on schedule %q", schedule)
				scheduler.Start()

				// Initial refresh after restart
				if !c.NoInitialRun {
					job.Run()
				}

				<-ctx.Done()
				return nil
			})
		}

		srv := NewServer(app.cfg.Server, app.storage)

		group.Go(func() error {
			log.Infof("running listener at %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})

		group.Go(func() error {
			<-ctx.Done()

			log.Info("shutting down web server")
			if err := srv.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("server shutdown failed")
			}
			return nil
		})

		if err := group.Wait(); err != nil && err != context.Canceled {
			return err
		}

		log.Info("gracefully stopped")
		return nil
	})
}
