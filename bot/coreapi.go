package bot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carlmjohnson/requests"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
	"gensaku/core"
	"gensaku/pixiv"
)

// CoreClient talks to the detection service's control API.
type CoreClient struct {
	log       *zap.Logger
	baseURL   string
	transport http.RoundTripper
}

func NewCoreClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *CoreClient {
	return &CoreClient{log, cfg.Bot.CoreAPIURL, transport}
}

func (c *CoreClient) ArtistInfo(ctx context.Context, artistID string) (*pixiv.UserDetail, error) {
	var detail pixiv.UserDetail
	err := requests.
		URL(fmt.Sprintf("%s/api/user/%s", c.baseURL, artistID)).
		Transport(c.transport).
		ToJSON(&detail).
		Fetch(ctx)
	if requests.HasStatusErr(err, http.StatusNotFound) {
		return nil, fmt.Errorf("%w: artist %s", pixiv.ErrNotFound, artistID)
	}
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *CoreClient) LatestWorks(ctx context.Context, artistID string) ([]pixiv.Illust, error) {
	var resp pixiv.IllustListResponse
	err := requests.
		URL(fmt.Sprintf("%s/api/user/%s/illusts", c.baseURL, artistID)).
		Transport(c.transport).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Illusts, nil
}

func (c *CoreClient) Register(ctx context.Context, artistID, initialMarker, artistName string) error {
	body := map[string]string{
		"artist_id":      artistID,
		"initial_marker": initialMarker,
		"artist_name":    artistName,
	}
	return requests.
		URL(c.baseURL+"/api/monitored-artists").
		Transport(c.transport).
		BodyJSON(body).
		Fetch(ctx)
}

func (c *CoreClient) Deregister(ctx context.Context, artistID string) error {
	return requests.
		URL(fmt.Sprintf("%s/api/monitored-artists/%s", c.baseURL, artistID)).
		Transport(c.transport).
		Method(http.MethodDelete).
		Fetch(ctx)
}

func (c *CoreClient) ForceUpdate(ctx context.Context, artistID string) (*core.PollResult, error) {
	body := map[string]string{}
	if artistID != "" {
		body["artist_id"] = artistID
	}

	var result core.PollResult
	err := requests.
		URL(c.baseURL+"/api/force-update").
		Transport(c.transport).
		BodyJSON(body).
		ToJSON(&result).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
