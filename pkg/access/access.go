// Package access decides which episodes the current session may fetch.
package access

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

// Marker carries the raw access flags of an episode record.
type Marker struct {
	IsFree    *bool
	Exclusive *bool
	Tier      string
}

// TierOf classifies an episode. An explicit isFree flag wins, then the exclusive/tier markers.
// Records without any marker are free.
func TierOf(m Marker) model.Tier {
	if m.IsFree != nil {
		if *m.IsFree {
			return model.TierFree
		}
		return model.TierPatron
	}

	if m.Exclusive != nil && *m.Exclusive {
		return model.TierPatron
	}

	switch strings.ToLower(strings.TrimSpace(m.Tier)) {
	case "patron", "patrons", "exclusive", "premium", "paid":
		return model.TierPatron
	}

	return model.TierFree
}

// MayFetch reports whether a credential can possibly reach content of the given tier.
// Patron entitlement itself is only discovered when the media reference is resolved.
func MayFetch(tier model.Tier, cred *model.Credential) bool {
	if tier != model.TierPatron {
		return true
	}
	return !cred.IsAnonymous()
}

type Decision int

const (
	Allowed Decision = iota
	Unauthorized
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "unauthorized"
}

// MediaResolver resolves the playable media of an episode.
type MediaResolver interface {
	ResolveMedia(ctx context.Context, cred *model.Credential, ep *model.Episode) (model.MediaRef, error)
}

type Classifier struct {
	resolver MediaResolver
}

func NewClassifier(resolver MediaResolver) *Classifier {
	return &Classifier{resolver: resolver}
}

// Resolve returns Allowed together with the episode media, or Unauthorized when the session
// can't reach it. Unauthorized is a decision, not an error.
func (c *Classifier) Resolve(ctx context.Context, cred *model.Credential, ep *model.Episode) (Decision, model.MediaRef, error) {
	logger := log.WithFields(log.Fields{"episode_id": ep.ID, "tier": ep.Tier})

	if !MayFetch(ep.Tier, cred) {
		logger.Debug("patron episode without credential")
		return Unauthorized, model.MediaRef{}, nil
	}

	if !ep.Media.IsZero() {
		return Allowed, ep.Media, nil
	}

	media, err := c.resolver.ResolveMedia(ctx, cred, ep)
	if errors.Is(err, model.ErrUnauthorized) {
		logger.Debug("media gateway refused access")
		return Unauthorized, model.MediaRef{}, nil
	} else if err != nil {
		return Unauthorized, model.MediaRef{}, err
	}

	ep.Media = media
	return Allowed, media, nil
}
