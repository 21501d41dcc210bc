// Package download turns resolved episode media into local files.
package download

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/fs"
	"github.com/castsync/castsync/pkg/model"
)

type Status string

const (
	Downloaded      = Status("downloaded")
	SkippedExisting = Status("skipped_existing")
	Failed          = Status("failed")
)

// FailureKind tells why a task failed.
type FailureKind string

const (
	TransferFailed = FailureKind("transfer_failed")
	RemuxFailed    = FailureKind("remux_failed")
	IOFailure      = FailureKind("io_failure")
)

const manifestMagic = "#EXTM3U"

// Remuxer converts a segmented stream into a single file.
type Remuxer interface {
	Remux(ctx context.Context, manifestURL string, output string) error
}

// Task is one planned acquisition.
type Task struct {
	Episode    *model.Episode
	TargetPath string
	Strategy   model.MediaKind
	Media      model.MediaRef
}

// Plan picks the strategy from the media kind.
func Plan(ep *model.Episode, media model.MediaRef, dir string, fileName string) *Task {
	return &Task{
		Episode:    ep,
		TargetPath: filepath.Join(dir, fileName),
		Strategy:   media.Kind,
		Media:      media,
	}
}

type Result struct {
	Task   *Task
	Status Status
	Kind   FailureKind // Set when Status is Failed
	Size   int64
	Err    error
}

func failed(task *Task, kind FailureKind, err error) Result {
	return Result{Task: task, Status: Failed, Kind: kind, Err: err}
}

type Strategist struct {
	client  *http.Client
	remuxer Remuxer
}

func New(client *http.Client, remuxer Remuxer) *Strategist {
	if client == nil {
		client = http.DefaultClient
	}
	return &Strategist{client: client, remuxer: remuxer}
}

// Execute acquires task.TargetPath. The target either ends up complete or untouched:
// partial data only ever lives in a temp file which is removed on failure.
func (s *Strategist) Execute(ctx context.Context, task *Task) Result {
	logger := log.WithFields(log.Fields{
		"episode_id": task.Episode.ID,
		"target":     task.TargetPath,
		"strategy":   task.Strategy,
	})

	if size, ok := fs.Exists(task.TargetPath); ok {
		logger.Debug("file already exists, skipping")
		return Result{Task: task, Status: SkippedExisting, Size: size}
	}

	removeEmpty(task.TargetPath)

	var result Result
	switch task.Strategy {
	case model.MediaSegmented:
		result = s.segmented(ctx, task)
	default:
		result = s.direct(ctx, task)
	}

	switch result.Status {
	case Downloaded:
		logger.Infof("downloaded %d bytes", result.Size)
	case SkippedExisting:
		logger.Info("file appeared during download, keeping existing one")
	case Failed:
		logger.WithError(result.Err).Errorf("download failed (%s)", result.Kind)
	}

	return result
}

// removeEmpty drops a zero-length leftover so that it does not block publishing.
func removeEmpty(path string) {
	stat, err := os.Lstat(path)
	if err != nil || !stat.Mode().IsRegular() || stat.Size() != 0 {
		return
	}

	if err := os.Remove(path); err != nil {
		log.WithError(err).Warnf("could not remove empty file %s", path)
	}
}

func (s *Strategist) direct(ctx context.Context, task *Task) Result {
	resp, err := s.fetch(ctx, task.Media.URL)
	if err != nil {
		return failed(task, TransferFailed, err)
	}
	defer resp.Body.Close()

	file, err := fs.CreateTemp(filepath.Dir(task.TargetPath), 0644)
	if err != nil {
		return failed(task, IOFailure, err)
	}
	defer file.Abort()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return failed(task, TransferFailed, errors.Wrapf(model.ErrTransferFailed, "copy after %d bytes: %v", written, err))
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return failed(task, TransferFailed, errors.Wrapf(model.ErrTransferFailed, "got %d of %d bytes", written, resp.ContentLength))
	}

	if written == 0 {
		return failed(task, TransferFailed, errors.Wrap(model.ErrTransferFailed, "empty response body"))
	}

	return s.publish(task, file, written)
}

func (s *Strategist) segmented(ctx context.Context, task *Task) Result {
	if s.remuxer == nil {
		return failed(task, RemuxFailed, errors.Wrap(model.ErrRemuxFailed, "no remuxer configured"))
	}

	if err := s.checkManifest(ctx, task.Media.URL); err != nil {
		return failed(task, TransferFailed, err)
	}

	file, err := fs.CreateTemp(filepath.Dir(task.TargetPath), 0644)
	if err != nil {
		return failed(task, IOFailure, err)
	}
	defer file.Abort()

	// The remuxer reopens the file by name
	if err := file.Close(); err != nil {
		return failed(task, IOFailure, err)
	}

	if err := s.remuxer.Remux(ctx, task.Media.URL, file.Name()); err != nil {
		if !errors.Is(err, model.ErrRemuxFailed) {
			err = errors.Wrapf(model.ErrRemuxFailed, "%v", err)
		}
		return failed(task, RemuxFailed, err)
	}

	size, ok := fs.Exists(file.Name())
	if !ok {
		return failed(task, RemuxFailed, errors.Wrap(model.ErrRemuxFailed, "remux produced no output"))
	}

	return s.publish(task, file, size)
}

func (s *Strategist) publish(task *Task, file *fs.TempFile, size int64) Result {
	if err := file.Publish(task.TargetPath); err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			existing, _ := fs.Exists(task.TargetPath)
			return Result{Task: task, Status: SkippedExisting, Size: existing}
		}
		return failed(task, IOFailure, err)
	}

	return Result{Task: task, Status: Downloaded, Size: size}
}

func (s *Strategist) checkManifest(ctx context.Context, manifestURL string) error {
	resp, err := s.fetch(ctx, manifestURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	head, err := bufio.NewReader(resp.Body).Peek(len(manifestMagic) + 16)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return errors.Wrapf(model.ErrTransferFailed, "read manifest: %v", err)
	}

	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(bytes.TrimSpace(head), []byte(manifestMagic)) {
		return errors.Wrap(model.ErrTransferFailed, "response is not an HLS manifest")
	}

	return nil
}

func (s *Strategist) fetch(ctx context.Context, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, errors.Wrapf(model.ErrTransferFailed, "build request: %v", err)
	}
	req.Header.Set("User-Agent", model.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(model.ErrTransferFailed, "GET %s: %v", link, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errors.Wrap(model.ErrTransferFailed, fmt.Sprintf("GET %s: status %d", link, resp.StatusCode))
	}

	return resp, nil
}
