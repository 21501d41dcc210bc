package model

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential is an access token issued by the platform's identity endpoint.
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`

	anonymous bool
}

// Anonymous restricts requests to free content. It is never persisted.
var Anonymous = &Credential{anonymous: true}

func (c *Credential) IsAnonymous() bool {
	return c == nil || c.anonymous || c.AccessToken == ""
}

// Valid reports whether the token may still be used, treating it as expired margin early.
func (c *Credential) Valid(now time.Time, margin time.Duration) bool {
	if c.IsAnonymous() {
		return false
	}

	return now.Before(c.ExpiresAt.Add(-margin))
}

// RefreshSecret is what the refresh endpoint accepts: the refresh token when issued, the access token otherwise.
func (c *Credential) RefreshSecret() string {
	if c == nil {
		return ""
	}

	if c.RefreshToken != "" {
		return c.RefreshToken
	}

	return c.AccessToken
}

// Token converts the credential into a bearer token. Anonymous credentials yield nil.
func (c *Credential) Token() *oauth2.Token {
	if c.IsAnonymous() {
		return nil
	}

	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.ExpiresAt,
	}
}
