package config

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadProgramIDs parses a program list: one id per line, "#" starts a comment,
// anything after the first whitespace is ignored. Duplicates are dropped.
func ReadProgramIDs(r io.Reader) ([]string, error) {
	var (
		ids     []string
		seen    = make(map[string]struct{})
		scanner = bufio.NewScanner(r)
	)

	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		id := fields[0]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read program list")
	}

	return ids, nil
}

// LoadProgramIDs reads the program list file.
func LoadProgramIDs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open program list %s", path)
	}
	defer file.Close()

	return ReadProgramIDs(file)
}

// ProgramIDs merges ids listed inline in the config with the program list file.
func (c *Config) ProgramIDs() ([]string, error) {
	ids := append([]string(nil), c.Programs...)

	if c.ProgramsFile != "" {
		fromFile, err := LoadProgramIDs(c.ProgramsFile)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}

	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out, nil
}
