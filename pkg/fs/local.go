package fs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Local keeps feeds and episodes under a root directory and serves them from hostname.
type Local struct {
	hostname string
	rootDir  string
}

func NewLocal(rootDir string, hostname string) (*Local, error) {
	if hostname == "" {
		return nil, errors.New("hostname can't be empty")
	}

	hostname = strings.TrimSuffix(hostname, "/")
	if !strings.HasPrefix(hostname, "http") {
		hostname = fmt.Sprintf("http://%s", hostname)
	}

	return &Local{rootDir: rootDir, hostname: hostname}, nil
}

func (l *Local) Root() string {
	return l.rootDir
}

// Path returns the on-disk location of a file inside namespace ns.
func (l *Local) Path(ns string, fileName string) string {
	return filepath.Join(l.rootDir, ns, fileName)
}

// Create atomically replaces ns/fileName with the reader contents.
func (l *Local) Create(ctx context.Context, ns string, fileName string, reader io.Reader) (int64, error) {
	var (
		logger = log.WithField("file", fileName)
		dir    = filepath.Join(l.rootDir, ns)
	)

	logger.Debugf("creating directory: %s", dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Wrapf(err, "failed to create directory: %s", dir)
	}

	file, err := CreateTemp(dir, 0644)
	if err != nil {
		return 0, err
	}

	defer file.Abort()

	written, err := io.Copy(file, reader)
	if err != nil {
		return 0, errors.Wrap(err, "failed to copy data")
	}

	if err := file.Commit(filepath.Join(dir, fileName)); err != nil {
		return 0, err
	}

	logger.Debugf("copied %d bytes", written)
	return written, nil
}

func (l *Local) Size(ctx context.Context, ns string, fileName string) (int64, error) {
	stat, err := os.Stat(l.Path(ns, fileName))
	if err == nil {
		return stat.Size(), nil
	}

	return 0, err
}

// Link builds the public link of a file without checking it exists.
func (l *Local) Link(ns string, fileName string) string {
	if ns == "" {
		return fmt.Sprintf("%s/%s", l.hostname, escapePath(fileName))
	}

	return fmt.Sprintf("%s/%s/%s", l.hostname, escapePath(ns), escapePath(fileName))
}

// Open implements http.FileSystem so the data directory can be served as is.
func (l *Local) Open(name string) (http.File, error) {
	return http.Dir(l.rootDir).Open(name)
}

func escapePath(p string) string {
	parts := strings.Split(filepath.ToSlash(p), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
