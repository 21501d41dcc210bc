// Package creds persists the platform access token between runs.
package creds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/fs"
	"github.com/castsync/castsync/pkg/model"
)

const DefaultPath = "~/.castsync_token"

// File stores a single credential as JSON readable by the owner only.
type File struct {
	path string
}

func NewFile(path string) *File {
	if path == "" {
		path = DefaultPath
	}

	return &File{path: expandHome(path)}
}

func (f *File) Path() string {
	return f.path
}

// Load returns the stored credential, or nil when nothing is stored.
func (f *File) Load() (*model.Credential, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(model.ErrIO, "read %s: %v", f.path, err)
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, errors.Wrapf(model.ErrIO, "decode %s: %v", f.path, err)
	}

	if cred.AccessToken == "" {
		return nil, nil
	}

	log.WithField("path", f.path).Debug("loaded stored credential")
	return &cred, nil
}

func (f *File) Save(cred *model.Credential) error {
	if cred.IsAnonymous() {
		return errors.New("anonymous credential can't be saved")
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode credential")
	}

	if err := fs.WriteFile(f.path, data, 0600); err != nil {
		return errors.Wrapf(err, "failed to save credential to %s", f.path)
	}

	return nil
}

func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(model.ErrIO, "remove %s: %v", f.path, err)
	}

	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
