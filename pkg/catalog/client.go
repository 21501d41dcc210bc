// Package catalog talks to the platform's content API and media gateway.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/castsync/castsync/pkg/model"
	"github.com/castsync/castsync/pkg/retry"
)

// Authenticator replaces a token the server refused.
type Authenticator interface {
	Reauthenticate(ctx context.Context, stale *model.Credential) (*model.Credential, error)
}

type Config struct {
	// ContentURL is the base of the public content API
	ContentURL string
	// GatewayURL is the base of the media gateway
	GatewayURL string
	// SiteURL is used to build program and episode web links
	SiteURL string
	// PageSize is the number of records the API returns per full page
	PageSize int
	// RequestRate limits requests per second, 0 disables the limit
	RequestRate float64
	Retry       retry.Config
}

type Client struct {
	cfg     Config
	http    *http.Client
	auth    Authenticator
	limiter *rate.Limiter

	mu       sync.Mutex
	programs map[string]*model.Program
}

func New(cfg Config, auth Authenticator, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: model.DefaultHTTPTimeout}
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = model.DefaultPageSize
	}

	cfg.ContentURL = strings.TrimSuffix(cfg.ContentURL, "/")
	cfg.GatewayURL = strings.TrimSuffix(cfg.GatewayURL, "/")
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), 1)
	}

	return &Client{
		cfg:      cfg,
		http:     client,
		auth:     auth,
		limiter:  limiter,
		programs: make(map[string]*model.Program),
	}
}

// Error aborts an enumeration. Partial holds the episodes produced before the failure.
type Error struct {
	Op      string
	Status  int
	Err     error
	Partial []*model.Episode
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("catalog %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError is an HTTP response outside of 2xx.
type statusError struct {
	Code int
	URL  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func transient(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// get fetches url into out, retrying transient failures. 4xx responses are returned as *statusError.
func (c *Client) get(ctx context.Context, url string, cred *model.Credential, out interface{}) error {
	return retry.Do(ctx, c.cfg.Retry, nil, func(ctx context.Context) error {
		err := c.getOnce(ctx, url, cred, out)
		if code := statusOf(err); code != 0 && !transient(code) {
			return retry.Permanent(err)
		}

		if err != nil {
			log.WithError(err).Debug("request failed")
		}

		return err
	})
}

func (c *Client) getOnce(ctx context.Context, url string, cred *model.Credential, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", model.UserAgent)

	if token := cred.Token(); token != nil {
		token.SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &statusError{Code: resp.StatusCode, URL: url}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(errors.Wrapf(err, "failed to decode %s", url))
	}

	return nil
}

// getAuthorized is get that reauthenticates once when the server answers 401.
// cred is updated in place with the replacement token.
func (c *Client) getAuthorized(ctx context.Context, url string, cred **model.Credential, out interface{}) error {
	err := c.get(ctx, url, *cred, out)
	if statusOf(err) != http.StatusUnauthorized || c.auth == nil || (*cred).IsAnonymous() {
		return err
	}

	log.WithField("url", url).Debug("token refused, reauthenticating")

	fresh, authErr := c.auth.Reauthenticate(ctx, *cred)
	if authErr != nil {
		log.WithError(authErr).Warn("reauthentication failed")
		return err
	}

	*cred = fresh
	return c.get(ctx, url, fresh, out)
}
