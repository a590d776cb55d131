package pixiv

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
)

const (
	appAPIBase = "https://app-api.pixiv.net"
	authURL    = "https://oauth.secure.pixiv.net/auth/token"

	clientID       = "MOBrBDS8blbauoSck0ZfDbtuzpyT"
	clientSecret   = "lsACyCD94FhDUtGTXi3QzcFE2uU1hqtDaKeqrdwj"
	clientHashSalt = "28c1fdd170a5204386cb1313c7077b34f83e4aaf4aa829ce78c231e05b0bae2c"
	userAgent      = "PixivAndroidApp/5.0.234 (Android 11; Pixel 5)"

	// Refresh the access token this long before it actually expires.
	expiryBuffer = time.Minute
)

// Client talks to the Pixiv app API using the mobile app's refresh-token flow.
// It is shared between the poller and the HTTP handlers, so token state is
// guarded by a mutex.
type Client struct {
	log       *zap.Logger
	transport http.RoundTripper
	timeout   time.Duration

	mu           sync.Mutex
	refreshToken string
	accessToken  string
	expiresAt    time.Time
}

func NewClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Client {
	return &Client{
		log:          log,
		transport:    transport,
		timeout:      cfg.PixivTimeout(),
		refreshToken: cfg.Pixiv.RefreshToken,
	}
}

// LatestWorks returns an artist's most recent illustration works, newest
// first. Malformed entries are dropped with a warning rather than failing the
// whole fetch. A missing artist maps to ErrNotFound.
func (c *Client) LatestWorks(ctx context.Context, artistID string) ([]Illust, error) {
	var resp IllustListResponse
	err := c.get(ctx, "/v1/user/illusts", map[string]string{
		"user_id": artistID,
		"type":    "illust",
	}, &resp)
	if err != nil {
		return nil, err
	}

	works := make([]Illust, 0, len(resp.Illusts))
	for _, il := range resp.Illusts {
		if err := il.Validate(); err != nil {
			c.log.Sugar().Warnw("Dropping malformed work from feed", "artist_id", artistID, "err", err)
			continue
		}
		works = append(works, il)
	}
	return works, nil
}

// ArtistInfo fetches an artist's profile, used for display names and for
// validating ids at subscribe time.
func (c *Client) ArtistInfo(ctx context.Context, artistID string) (*UserDetail, error) {
	var detail UserDetail
	err := c.get(ctx, "/v1/user/detail", map[string]string{"user_id": artistID}, &detail)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// FetchImage streams an asset from Pixiv's image CDN, which rejects requests
// without the app Referer.
func (c *Client) FetchImage(ctx context.Context, imageURL string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return requests.
		URL(imageURL).
		Transport(c.transport).
		Header("Referer", appAPIBase+"/").
		Header("User-Agent", userAgent).
		ToWriter(w).
		Fetch(ctx)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.ensureAuth(ctx)
	if err != nil {
		return err
	}

	err = c.fetch(ctx, path, params, token, out)
	if requests.HasStatusErr(err, http.StatusUnauthorized) {
		// Token went stale mid-flight. Force a refresh and retry once.
		c.invalidateToken()
		if token, err = c.ensureAuth(ctx); err != nil {
			return err
		}
		err = c.fetch(ctx, path, params, token, out)
	}

	switch {
	case err == nil:
		return nil
	case requests.HasStatusErr(err, http.StatusNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	default:
		return fmt.Errorf("pixiv: GET %s: %w", path, err)
	}
}

func (c *Client) fetch(ctx context.Context, path string, params map[string]string, token string, out any) error {
	rb := requests.
		URL(appAPIBase + path).
		Transport(c.transport).
		ToJSON(out)
	for k, v := range params {
		rb = rb.Param(k, v)
	}
	return c.signed(rb, token).Fetch(ctx)
}

func (c *Client) ensureAuth(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-expiryBuffer)) {
		return c.accessToken, nil
	}

	c.log.Sugar().Info("Refreshing Pixiv access token")

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}

	var auth authResponse
	rb := requests.
		URL(authURL).
		Transport(c.transport).
		BodyForm(form).
		ToJSON(&auth)
	if err := c.signed(rb, "").Fetch(ctx); err != nil {
		return "", fmt.Errorf("pixiv auth: %w", err)
	}

	c.accessToken = auth.AccessToken
	if auth.RefreshToken != "" {
		c.refreshToken = auth.RefreshToken
	}
	c.expiresAt = time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func (c *Client) signed(rb *requests.Builder, token string) *requests.Builder {
	clientTime := time.Now().UTC().Format("2006-01-02T15:04:05+00:00")
	rb = rb.
		Header("User-Agent", userAgent).
		Header("X-Client-Time", clientTime).
		Header("X-Client-Hash", clientHash(clientTime)).
		Header("App-OS", "android").
		Header("Accept-Language", "en-us")
	if token != "" {
		rb = rb.Header("Authorization", "Bearer "+token)
	}
	return rb
}

func clientHash(clientTime string) string {
	sum := md5.Sum([]byte(clientTime + clientHashSalt))
	return hex.EncodeToString(sum[:])
}
