package feed

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/castsync/castsync/pkg/model"
)

const defaultHookTimeout = time.Minute

// ExecHook is an external command run after each downloaded episode
type ExecHook struct {
	Command []string `toml:"command"`
	Timeout int      `toml:"timeout"` // Seconds, 0 means one minute
}

// HookEnv describes a downloaded episode to a hook.
func HookEnv(file string, episode *model.Episode, program *model.Program) []string {
	env := []string{
		"EPISODE_FILE=" + file,
		"EPISODE_ID=" + episode.ID,
		"EPISODE_TITLE=" + episode.Title,
		"PROGRAM_ID=" + episode.ProgramID,
	}

	if program != nil {
		env = append(env, "PROGRAM_TITLE="+program.Title)
	}

	return env
}

// Invoke runs the hook with env appended to the process environment
func (h *ExecHook) Invoke(ctx context.Context, env []string) error {
	if h == nil {
		return nil
	}
	if len(h.Command) == 0 {
		return errors.New("hook command is empty")
	}

	timeout := defaultHookTimeout
	if h.Timeout > 0 {
		timeout = time.Duration(h.Timeout) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if len(h.Command) == 1 {
		// Single string, let the shell parse it
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", h.Command[0])
	} else {
		cmd = exec.CommandContext(ctx, h.Command[0], h.Command[1:]...)
	}

	cmd.Env = append(os.Environ(), env...)

	data, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Errorf("hook execution failed: %v, output: %s", err, strings.TrimSpace(string(data)))
	}

	return nil
}
