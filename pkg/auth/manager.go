// Package auth keeps a valid platform access token available for gated requests.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/castsync/castsync/pkg/model"
)

// Store persists the credential between runs.
type Store interface {
	Load() (*model.Credential, error)
	Save(cred *model.Credential) error
	Clear() error
}

// Identity is what the user logs in with.
type Identity struct {
	Email    string
	Password string
}

// IdentityFunc supplies the login identity, usually by prompting the user.
type IdentityFunc func(ctx context.Context) (Identity, error)

type Option func(m *Manager)

func WithClient(client *http.Client) Option {
	return func(m *Manager) { m.client = client }
}

// WithMargin sets how long before expiry a token is considered expired.
func WithMargin(margin time.Duration) Option {
	return func(m *Manager) { m.margin = margin }
}

// WithTTL sets the lifetime assumed for tokens that carry no expiry information.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	endpoint string
	client   *http.Client
	store    Store
	identity IdentityFunc
	margin   time.Duration
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	loaded  bool
	current *model.Credential
}

func NewManager(endpoint string, store Store, identity IdentityFunc, opts ...Option) *Manager {
	m := &Manager{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: model.DefaultHTTPTimeout},
		store:    store,
		identity: identity,
		margin:   model.DefaultExpiryMargin,
		ttl:      model.DefaultTokenTTL,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Current returns the credential held in memory (loading it from the store on first use).
func (m *Manager) Current() *model.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadLocked()
	return m.current
}

// EnsureValid returns a credential usable right now.
// Expired tokens are refreshed, rejected ones cleared. Without allowLogin and without a usable
// token the anonymous credential is returned, which restricts requests to free content.
func (m *Manager) EnsureValid(ctx context.Context, allowLogin bool) (*model.Credential, error) {
	cur := m.Current()

	if cur.Valid(m.now(), m.margin) {
		return cur, nil
	}

	if cur != nil {
		cred, err := m.refresh(ctx, cur)
		if err == nil {
			return cred, nil
		}

		var authErr *Error
		if !errors.As(err, &authErr) || !authErr.Rejected() {
			return nil, err
		}

		log.WithError(err).Warn("stored credential was rejected")
	}

	if !allowLogin {
		log.Debug("no usable credential, continuing anonymously")
		return model.Anonymous, nil
	}

	return m.Login(ctx)
}

// Reauthenticate is called after a gated request was answered with 401.
// If another caller already replaced stale, the replacement is returned without a new refresh.
// A rejected refresh falls back to a fresh login when an identity is available.
func (m *Manager) Reauthenticate(ctx context.Context, stale *model.Credential) (*model.Credential, error) {
	if stale.IsAnonymous() {
		return nil, errors.Wrap(model.ErrNoAuth, "anonymous session can't be reauthenticated")
	}

	if cur := m.Current(); !cur.IsAnonymous() && cur.AccessToken != stale.AccessToken {
		return cur, nil
	}

	cred, err := m.refresh(ctx, stale)
	if err == nil {
		return cred, nil
	}

	var authErr *Error
	if !errors.As(err, &authErr) || !authErr.Rejected() || m.identity == nil {
		return nil, err
	}

	log.WithError(err).Warn("token refresh was rejected, logging in again")
	return m.Login(ctx)
}

// Login exchanges the user identity for a new credential.
func (m *Manager) Login(ctx context.Context) (*model.Credential, error) {
	v, err, _ := m.group.Do("login", func() (interface{}, error) {
		if m.identity == nil {
			return nil, errors.Wrap(model.ErrNoAuth, "no identity available for login")
		}

		id, err := m.identity(ctx)
		if err != nil {
			return nil, errors.Wrap(model.ErrNoAuth, err.Error())
		}

		log.WithField("email", id.Email).Info("logging in")

		cred, status, err := m.requestToken(ctx, "/auth/login", map[string]string{
			"email":    id.Email,
			"password": id.Password,
		})
		if err != nil {
			return nil, &Error{Kind: model.ErrLoginFailed, Status: status, Err: err}
		}

		m.set(cred)
		return cred, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*model.Credential), nil
}

// Logout forgets the credential, both in memory and on disk.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.loaded = true
	m.current = nil
	m.mu.Unlock()

	return m.store.Clear()
}

func (m *Manager) refresh(ctx context.Context, stale *model.Credential) (*model.Credential, error) {
	v, err, shared := m.group.Do("refresh", func() (interface{}, error) {
		// Someone else may have refreshed between our read and this flight
		if cur := m.Current(); !cur.IsAnonymous() && cur.AccessToken != stale.AccessToken && cur.Valid(m.now(), m.margin) {
			return cur, nil
		}

		log.Debug("refreshing access token")

		cred, status, err := m.requestToken(ctx, "/auth/refresh", map[string]string{
			"refreshToken": stale.RefreshSecret(),
		})
		if err != nil {
			authErr := &Error{Kind: model.ErrRefreshFailed, Status: status, Err: err}
			if authErr.Rejected() {
				m.invalidate(stale)
			}
			return nil, authErr
		}

		if cred.RefreshToken == "" {
			cred.RefreshToken = stale.RefreshToken
		}

		m.set(cred)
		return cred, nil
	})

	if err != nil {
		return nil, err
	}

	if shared {
		log.Debug("reused in-flight token refresh")
	}

	return v.(*model.Credential), nil
}

func (m *Manager) loadLocked() {
	if m.loaded {
		return
	}
	m.loaded = true

	cred, err := m.store.Load()
	if err != nil {
		log.WithError(err).Warn("failed to load stored credential, treating as absent")
		return
	}

	if cred != nil && cred.ExpiresAt.IsZero() {
		// Tokens saved without expiry are trusted only as far as their own claims go
		if exp, ok := jwtExpiry(cred.AccessToken); ok {
			cred.ExpiresAt = exp
		}
	}

	m.current = cred
}

func (m *Manager) set(cred *model.Credential) {
	m.mu.Lock()
	m.loaded = true
	m.current = cred
	m.mu.Unlock()

	if err := m.store.Save(cred); err != nil {
		log.WithError(err).Warn("failed to persist credential, it stays valid for this run")
	}
}

func (m *Manager) invalidate(stale *model.Credential) {
	m.mu.Lock()
	if m.current != nil && m.current.AccessToken == stale.AccessToken {
		m.current = nil
	}
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		log.WithError(err).Warn("failed to clear rejected credential")
	}
}

type tokenResponse struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresIn    float64         `json:"expiresIn"`
	ExpiresAt    model.Timestamp `json:"expiresAt"`
}

func (m *Manager) requestToken(ctx context.Context, path string, payload interface{}) (*model.Credential, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", model.UserAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, 0, err
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, resp.StatusCode, errors.Errorf("%s returned %d: %s", path, resp.StatusCode, truncate(string(data), 200))
	}

	var out tokenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to decode token response")
	}

	if out.AccessToken == "" {
		return nil, resp.StatusCode, errors.New("response carries no access token")
	}

	return &model.Credential{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    m.expiry(out),
	}, resp.StatusCode, nil
}

func (m *Manager) expiry(out tokenResponse) time.Time {
	now := m.now()

	switch {
	case out.ExpiresIn > 0:
		return now.Add(time.Duration(out.ExpiresIn * float64(time.Second)))
	case !out.ExpiresAt.IsZero():
		return out.ExpiresAt.Time()
	}

	if exp, ok := jwtExpiry(out.AccessToken); ok {
		return exp
	}

	return now.Add(m.ttl)
}

// Error is a failed login or refresh. errors.Is matches its Kind.
type Error struct {
	Kind   error
	Status int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Rejected reports whether the server refused the identity or token, as opposed to being unreachable.
func (e *Error) Rejected() bool {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
