package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

// ListPrograms returns every program in API order, deduplicated by id.
func (c *Client) ListPrograms(ctx context.Context) ([]*model.Program, error) {
	var (
		programs []*model.Program
		seen     = make(map[string]struct{})
		received int
	)

	for page := 0; ; page++ {
		var resp programsPage

		pageURL := fmt.Sprintf("%s/programs?page=%d", c.cfg.ContentURL, page)
		if err := c.get(ctx, pageURL, model.Anonymous, &resp); err != nil {
			return programs, &Error{Op: "list programs", Status: statusOf(err), Err: err}
		}

		if resp.Embedded == nil || len(resp.Embedded.Programs) == 0 {
			break
		}

		received += len(resp.Embedded.Programs)

		for _, data := range resp.Embedded.Programs {
			var raw rawProgram
			if err := json.Unmarshal(data, &raw); err != nil {
				log.WithError(err).Warn("skipping malformed program record")
				continue
			}

			program, err := c.normalizeProgram(&raw)
			if err != nil {
				log.WithError(err).Warn("skipping program record")
				continue
			}

			if _, ok := seen[program.ID]; ok {
				continue
			}
			seen[program.ID] = struct{}{}

			c.cache(program)
			programs = append(programs, program)
		}

		if len(resp.Embedded.Programs) < c.cfg.PageSize {
			break
		}

		if reachedTotal(resp.Total, received) {
			break
		}
	}

	log.Debugf("received %d program(s)", len(programs))
	return programs, nil
}

// GetProgram returns program metadata, fetched once per client.
func (c *Client) GetProgram(ctx context.Context, id string) (*model.Program, error) {
	c.mu.Lock()
	cached, ok := c.programs[id]
	c.mu.Unlock()

	if ok {
		return cached, nil
	}

	var raw rawProgram

	programURL := fmt.Sprintf("%s/programs/%s", c.cfg.ContentURL, url.PathEscape(id))
	if err := c.get(ctx, programURL, model.Anonymous, &raw); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, errors.Wrapf(model.ErrNotFound, "program %s", id)
		}
		return nil, &Error{Op: "get program", Status: statusOf(err), Err: err}
	}

	if raw.ID == "" {
		raw.ID = flexString(id)
	}

	program, err := c.normalizeProgram(&raw)
	if err != nil {
		return nil, err
	}

	c.cache(program)
	return program, nil
}

func (c *Client) cache(program *model.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.programs[program.ID]; !ok {
		c.programs[program.ID] = program
	}
}
