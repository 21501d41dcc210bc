// Package remux assembles segmented streams into a single audio file with ffmpeg.
package remux

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

const (
	FormatMP3 = "mp3"
	FormatM4A = "m4a"
)

// Config is the [remux] section of the config file.
type Config struct {
	// Path to the ffmpeg binary, looked up in PATH when empty
	Path string `toml:"ffmpeg_path"`
	// Format is the output container: "mp3" (re-encoded) or "m4a" (stream copy)
	Format string `toml:"format"`
	// Bitrate of re-encoded audio
	Bitrate string `toml:"bitrate"`
	// Timeout per episode
	Timeout time.Duration `toml:"-"`
	// Args are extra ffmpeg arguments inserted before the output
	Args []string `toml:"args"`
}

// Extension is the file extension of remuxed episodes.
func (c Config) Extension() string {
	if c.Format == FormatM4A {
		return FormatM4A
	}
	return FormatMP3
}

type FFmpeg struct {
	path string
	cfg  Config
}

// New locates ffmpeg and makes sure it runs.
func New(ctx context.Context, cfg Config) (*FFmpeg, error) {
	name := cfg.Path
	if name == "" {
		name = "ffmpeg"
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg binary not found")
	}

	log.Debugf("found ffmpeg binary at %q", path)

	output, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		return nil, errors.Wrap(err, "could not run ffmpeg")
	}

	version := strings.SplitN(string(output), "\n", 2)[0]
	log.Infof("using %s", version)

	if cfg.Timeout == 0 {
		cfg.Timeout = model.DefaultRemuxTimeout
	}

	return &FFmpeg{path: path, cfg: cfg}, nil
}

func (f *FFmpeg) Extension() string {
	return f.cfg.Extension()
}

// Remux reads the manifest at manifestURL and writes one audio file to output.
// Any failure, including a nonzero exit, is model.ErrRemuxFailed.
func (f *FFmpeg) Remux(ctx context.Context, manifestURL string, output string) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	args := buildArgs(f.cfg, manifestURL, output)
	log.WithField("output", output).Debugf("running ffmpeg %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, f.path, args...)
	data, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrapf(model.ErrRemuxFailed, "ffmpeg timed out after %s", f.cfg.Timeout)
		}
		return errors.Wrapf(model.ErrRemuxFailed, "ffmpeg: %v: %s", err, tail(string(data), 500))
	}

	return nil
}

func buildArgs(cfg Config, input string, output string) []string {
	args := []string{"-nostdin", "-y", "-loglevel", "error", "-i", input, "-vn"}

	switch cfg.Format {
	case FormatM4A:
		args = append(args, "-c:a", "copy", "-bsf:a", "aac_adtstoasc", "-f", "ipod")
	default:
		bitrate := cfg.Bitrate
		if bitrate == "" {
			bitrate = "128k"
		}
		args = append(args, "-acodec", "libmp3lame", "-ab", bitrate, "-f", "mp3")
	}

	args = append(args, cfg.Args...)
	return append(args, output)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
