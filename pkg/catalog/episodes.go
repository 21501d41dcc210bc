package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

// Pager walks a program's episodes newest first, one page at a time.
// It is single use and not safe for concurrent calls.
type Pager struct {
	client  *Client
	program *model.Program
	cred    *model.Credential

	page     int
	received int
	buf      []*model.Episode
	current  *model.Episode
	produced []*model.Episode
	last     bool
	err      error
}

// Episodes starts a lazy enumeration. No request is made until Next is called.
func (c *Client) Episodes(program *model.Program, cred *model.Credential) *Pager {
	if cred == nil {
		cred = model.Anonymous
	}
	return &Pager{client: c, program: program, cred: cred}
}

// Next advances to the next episode, fetching pages as needed.
func (p *Pager) Next(ctx context.Context) bool {
	for len(p.buf) == 0 {
		if p.last || p.err != nil {
			p.current = nil
			return false
		}

		if err := p.fetch(ctx); err != nil {
			p.err = &Error{
				Op:      fmt.Sprintf("list episodes of %s (page %d)", p.program.ID, p.page),
				Status:  statusOf(err),
				Err:     err,
				Partial: p.produced,
			}
			p.current = nil
			return false
		}
	}

	p.current, p.buf = p.buf[0], p.buf[1:]
	p.produced = append(p.produced, p.current)
	return true
}

func (p *Pager) Episode() *model.Episode {
	return p.current
}

// Err returns the *Error that stopped the enumeration, if any.
func (p *Pager) Err() error {
	return p.err
}

// Credential returns the token the pager ended up using, which may have been replaced after a 401.
func (p *Pager) Credential() *model.Credential {
	return p.cred
}

func (p *Pager) fetch(ctx context.Context) error {
	var (
		c       = p.client
		resp    episodesPage
		pageURL = fmt.Sprintf("%s/programs/%s/podcasts?page=%d", c.cfg.ContentURL, url.PathEscape(p.program.ID), p.page)
		logger  = log.WithFields(log.Fields{"program_id": p.program.ID, "page": p.page})
	)

	if err := c.getAuthorized(ctx, pageURL, &p.cred, &resp); err != nil {
		return err
	}

	p.page++

	if resp.Embedded == nil || len(resp.Embedded.Podcasts) == 0 {
		p.last = true
		return nil
	}

	records := resp.Embedded.Podcasts
	p.received += len(records)

	if len(records) < c.cfg.PageSize || reachedTotal(resp.Total, p.received) {
		p.last = true
	}

	for _, data := range records {
		var raw rawEpisode
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.WithError(err).Warn("skipping malformed episode record")
			continue
		}

		ep, err := c.normalizeEpisode(p.program, &raw)
		if err != nil {
			logger.WithError(err).Warn("skipping episode record")
			continue
		}

		p.buf = append(p.buf, ep)
	}

	logger.Debugf("received %d episode(s)", len(p.buf))
	return nil
}

// reachedTotal reports whether the advertised total has been received. A zero total is ignored.
func reachedTotal(total *int, received int) bool {
	return total != nil && *total > 0 && received >= *total
}

// Collect drains a pager into a slice. limit 0 means no limit.
// On failure the episodes collected so far are returned together with the error.
func Collect(ctx context.Context, pager *Pager, limit int) ([]*model.Episode, error) {
	var episodes []*model.Episode

	for (limit <= 0 || len(episodes) < limit) && pager.Next(ctx) {
		episodes = append(episodes, pager.Episode())
	}

	return episodes, pager.Err()
}

// ListEpisodes collects up to limit of the newest episodes of a program. The returned
// credential is the one in use at the end, which differs from cred after a re-authentication.
func (c *Client) ListEpisodes(ctx context.Context, program *model.Program, cred *model.Credential, limit int) ([]*model.Episode, *model.Credential, error) {
	pager := c.Episodes(program, cred)
	episodes, err := Collect(ctx, pager, limit)
	return episodes, pager.Credential(), err
}
