package remux

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castsync/castsync/pkg/model"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		expect []string
	}{
		{
			name:   "default mp3",
			cfg:    Config{},
			expect: []string{"-nostdin", "-y", "-loglevel", "error", "-i", "http://m3u8", "-vn", "-acodec", "libmp3lame", "-ab", "128k", "-f", "mp3", "/tmp/out"},
		},
		{
			name:   "mp3 custom bitrate",
			cfg:    Config{Format: FormatMP3, Bitrate: "192k"},
			expect: []string{"-nostdin", "-y", "-loglevel", "error", "-i", "http://m3u8", "-vn", "-acodec", "libmp3lame", "-ab", "192k", "-f", "mp3", "/tmp/out"},
		},
		{
			name:   "m4a stream copy",
			cfg:    Config{Format: FormatM4A},
			expect: []string{"-nostdin", "-y", "-loglevel", "error", "-i", "http://m3u8", "-vn", "-c:a", "copy", "-bsf:a", "aac_adtstoasc", "-f", "ipod", "/tmp/out"},
		},
		{
			name:   "extra args",
			cfg:    Config{Args: []string{"-ar", "44100"}},
			expect: []string{"-nostdin", "-y", "-loglevel", "error", "-i", "http://m3u8", "-vn", "-acodec", "libmp3lame", "-ab", "128k", "-f", "mp3", "-ar", "44100", "/tmp/out"},
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			assert.EqualValues(t, tst.expect, buildArgs(tst.cfg, "http://m3u8", "/tmp/out"))
		})
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "mp3", Config{}.Extension())
	assert.Equal(t, "m4a", Config{Format: FormatM4A}.Extension())
}

func fakeBinary(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestRemux_NonZeroExit(t *testing.T) {
	bin := fakeBinary(t, "echo broken stream >&2\nexit 1\n")

	f := &FFmpeg{path: bin, cfg: Config{Timeout: time.Minute}}
	err := f.Remux(context.Background(), "http://example.com/a.m3u8", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrRemuxFailed))
	assert.Contains(t, err.Error(), "broken stream")
}

func TestRemux_Success(t *testing.T) {
	// The last argument is the output path
	bin := fakeBinary(t, "for last; do :; done\necho audio > \"$last\"\n")
	out := filepath.Join(t.TempDir(), "out")

	f := &FFmpeg{path: bin, cfg: Config{Timeout: time.Minute}}
	require.NoError(t, f.Remux(context.Background(), "http://example.com/a.m3u8", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio\n", string(data))
}

func TestNew_MissingBinary(t *testing.T) {
	_, err := New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
