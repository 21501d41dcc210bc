package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/config"
)

// setupLogging adds the configured log file next to stderr. The returned func closes it.
func setupLogging(cfg config.Log, debug bool) (func(), error) {
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if cfg.Filename == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	if err := rotateLog(cfg.Filename, int64(cfg.MaxSize)*1024*1024); err != nil {
		log.WithError(err).Warn("failed to rotate log file")
	}

	file, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", cfg.Filename)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, file))

	return func() {
		log.SetOutput(os.Stderr)
		_ = file.Close()
	}, nil
}

// rotateLog moves the log file aside once it grows past maxBytes. One old file is kept.
func rotateLog(path string, maxBytes int64) error {
	if maxBytes <= 0 {
		return nil
	}

	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}

	if stat.Size() < maxBytes {
		return nil
	}

	return os.Rename(path, path+".1")
}
