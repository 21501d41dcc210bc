package fs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

// TempPattern names in-progress files. They never collide with published names.
const TempPattern = ".castsync-*.part"

// TempFile is a file written next to its final location and published in one step.
type TempFile struct {
	*os.File
	closed bool
	done   bool
}

// CreateTemp opens a new temporary file in dir.
func CreateTemp(dir string, perm os.FileMode) (*TempFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(model.ErrIO, "create directory %s: %v", dir, err)
	}

	file, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return nil, errors.Wrapf(model.ErrIO, "create temp file in %s: %v", dir, err)
	}

	if err := file.Chmod(perm); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, errors.Wrapf(model.ErrIO, "chmod %s: %v", file.Name(), err)
	}

	return &TempFile{File: file}, nil
}

// Close flushes and closes the file, keeping it on disk.
func (f *TempFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.File.Sync(); err != nil {
		f.File.Close()
		return errors.Wrapf(model.ErrIO, "sync %s: %v", f.Name(), err)
	}

	if err := f.File.Close(); err != nil {
		return errors.Wrapf(model.ErrIO, "close %s: %v", f.Name(), err)
	}

	return nil
}

// Commit replaces target with the temp file.
func (f *TempFile) Commit(target string) error {
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(f.Name(), target); err != nil {
		return errors.Wrapf(model.ErrIO, "rename to %s: %v", target, err)
	}

	f.done = true
	return nil
}

// Publish moves the temp file to target unless target already exists,
// in which case model.ErrAlreadyExists is returned and the temp file is discarded.
func (f *TempFile) Publish(target string) error {
	if err := f.Close(); err != nil {
		return err
	}

	err := os.Link(f.Name(), target)
	switch {
	case err == nil:
		f.done = true
		if err := os.Remove(f.Name()); err != nil {
			log.WithError(err).Warnf("failed to remove temp file %s", f.Name())
		}
		return nil
	case os.IsExist(err):
		return model.ErrAlreadyExists
	}

	// Hard links are not supported everywhere, fall back to a guarded rename
	log.WithError(err).Debug("hard link failed, falling back to rename")
	if _, statErr := os.Lstat(target); statErr == nil {
		return model.ErrAlreadyExists
	}

	if err := os.Rename(f.Name(), target); err != nil {
		return errors.Wrapf(model.ErrIO, "rename to %s: %v", target, err)
	}

	f.done = true
	return nil
}

// Abort removes the temp file unless it was committed or published.
func (f *TempFile) Abort() {
	if f.done {
		return
	}

	if !f.closed {
		f.closed = true
		f.File.Close()
	}

	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("could not remove temp file %s", f.Name())
	}
	f.done = true
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	file, err := CreateTemp(filepath.Dir(path), perm)
	if err != nil {
		return err
	}

	defer file.Abort()

	if _, err := file.Write(data); err != nil {
		return errors.Wrapf(model.ErrIO, "write %s: %v", file.Name(), err)
	}

	return file.Commit(path)
}

// Exists reports whether path holds a non-empty regular file.
func Exists(path string) (int64, bool) {
	stat, err := os.Stat(path)
	if err != nil || !stat.Mode().IsRegular() || stat.Size() == 0 {
		return 0, false
	}

	return stat.Size(), true
}
