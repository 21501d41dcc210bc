package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/castsync/castsync/pkg/model"
)

type mediaResponse struct {
	URL string `json:"url"`
}

// ResolveMedia asks the gateway for the playable URL of an episode.
// A refusal after one reauthentication (or a 403) is model.ErrUnauthorized.
func (c *Client) ResolveMedia(ctx context.Context, cred *model.Credential, ep *model.Episode) (model.MediaRef, error) {
	var (
		resp     mediaResponse
		mediaURL = fmt.Sprintf("%s/content/podcast/%s/url", c.cfg.GatewayURL, url.PathEscape(ep.ID))
	)

	err := c.getAuthorized(ctx, mediaURL, &cred, &resp)
	switch statusOf(err) {
	case 0:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
		return model.MediaRef{}, errors.Wrapf(model.ErrUnauthorized, "episode %s: %v", ep.ID, err)
	case http.StatusNotFound:
		return model.MediaRef{}, errors.Wrapf(model.ErrNotFound, "episode %s media", ep.ID)
	}

	if err != nil {
		return model.MediaRef{}, errors.Wrapf(err, "failed to resolve media of episode %s", ep.ID)
	}

	if resp.URL == "" {
		if ep.Tier == model.TierPatron {
			return model.MediaRef{}, errors.Wrapf(model.ErrUnauthorized, "episode %s: gateway returned no url", ep.ID)
		}
		return model.MediaRef{}, errors.Errorf("gateway returned no url for episode %s", ep.ID)
	}

	return model.NewMediaRef(resp.URL), nil
}
