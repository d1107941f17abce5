package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultRateLimitWindow is assumed when a 429 carries no reset information.
const DefaultRateLimitWindow = 15 * time.Minute

const (
	endpointFriendsIDs     = "/1.1/friends/ids.json"
	endpointFollowersIDs   = "/1.1/followers/ids.json"
	endpointFriendships    = "/1.1/friendships/lookup.json"
	endpointUsersLookup    = "/1.1/users/lookup.json"
	endpointFollow         = "/1.1/friendships/create.json"
	endpointUnfollow       = "/1.1/friendships/destroy.json"
	headerRateLimitReset   = "X-Rate-Limit-Reset"
	connectionFollowing    = "following"
	connectionFollowedBy   = "followed_by"
	connectionFollowingReq = "following_requested"
)

// statusTimeLayout is the layout of status creation times.
const statusTimeLayout = time.RubyDate

type idsResponse struct {
	IDs        []int64 `json:"ids"`
	NextCursor int64   `json:"next_cursor"`
}

type friendshipResponse struct {
	ID          int64    `json:"id"`
	Connections []string `json:"connections"`
}

type userResponse struct {
	ID             int64  `json:"id"`
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name"`
	FriendsCount   int64  `json:"friends_count"`
	FollowersCount int64  `json:"followers_count"`
	Protected      bool   `json:"protected"`
	Status         *struct {
		CreatedAt string `json:"created_at"`
	} `json:"status"`
}

// Client implements API over HTTP.
type Client struct {
	baseURL    *url.URL
	token      string
	screenName string
	client     *retryablehttp.Client // idempotent reads, retried on transport errors and 5xx
	actions    *retryablehttp.Client // follow and unfollow, never retried
	limiter    *rate.Limiter
	clock      clockwork.Clock
	logger     *zap.Logger
}

var _ API = (*Client)(nil)

// checkRetry retries reads on the default policy but never on a rate limit,
// which is handled by the Caller instead.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// noRetry never retries but still surfaces context errors.
func noRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	return false, ctx.Err()
}

// retryableHTTPLogger makes zap.Logger compatible with retryablehttp.LeveledLogger.
type retryableHTTPLogger struct {
	inner *zap.Logger
}

func (r retryableHTTPLogger) Error(msg string, keysAndValues ...any) {
	r.inner.Sugar().Errorw(msg, keysAndValues...)
}

func (r retryableHTTPLogger) Info(msg string, keysAndValues ...any) {
	r.inner.Sugar().Infow(msg, keysAndValues...)
}

func (r retryableHTTPLogger) Warn(msg string, keysAndValues ...any) {
	r.inner.Sugar().Warnw(msg, keysAndValues...)
}

func (r retryableHTTPLogger) Debug(msg string, keysAndValues ...any) {
	r.inner.Sugar().Debugw(msg, keysAndValues...)
}

// NewClient creates an API client from configuration.
func NewClient(cfg *config.API, clock clockwork.Clock, logger *zap.Logger) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	if baseURL.Scheme == "" {
		baseURL.Scheme = "https"
	}

	logger = logger.Named("api")
	timeout := time.Duration(cfg.RequestTimeout) * time.Millisecond

	newHTTPClient := func(retries int, policy retryablehttp.CheckRetry) *retryablehttp.Client {
		client := retryablehttp.NewClient()
		client.HTTPClient.Timeout = timeout
		client.RetryMax = retries
		client.RetryWaitMin = time.Duration(cfg.RetryWaitMin) * time.Millisecond
		client.RetryWaitMax = time.Duration(cfg.RetryWaitMax) * time.Millisecond
		client.CheckRetry = policy
		client.ErrorHandler = retryablehttp.PassthroughErrorHandler
		client.Logger = retryableHTTPLogger{inner: logger}

		return client
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		baseURL:    baseURL,
		token:      cfg.BearerToken,
		screenName: cfg.ScreenName,
		client:     newHTTPClient(cfg.MaxRetries, checkRetry),
		actions:    newHTTPClient(0, noRetry),
		limiter:    rate.NewLimiter(limit, max(cfg.Burst, 1)),
		clock:      clock,
		logger:     logger,
	}

	logger.Info("Created API client",
		zap.Stringer("url", baseURL),
		zap.String("screenName", cfg.ScreenName),
		zap.Float64("requestsPerSecond", cfg.RequestsPerSecond),
		zap.Int("maxRetries", cfg.MaxRetries))

	return c, nil
}

// FetchIDs implements API.
func (c *Client) FetchIDs(ctx context.Context, kind enum.RelationKind, cursor int64) (*IDPage, error) {
	endpoint := endpointFollowersIDs
	if kind == enum.RelationKindFriend {
		endpoint = endpointFriendsIDs
	}

	query := url.Values{}
	query.Set("screen_name", c.screenName)
	query.Set("cursor", strconv.FormatInt(cursor, 10))
	query.Set("count", strconv.Itoa(IDPageSize))

	var resp idsResponse
	if err := c.do(ctx, c.client, http.MethodGet, endpoint, query, &resp); err != nil {
		return nil, err
	}

	return &IDPage{IDs: resp.IDs, NextCursor: resp.NextCursor}, nil
}

// LookupRelations implements API.
func (c *Client) LookupRelations(ctx context.Context, ids []int64) ([]Relation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if len(ids) > MaxLookupBatch {
		return nil, fmt.Errorf("%w: %d", ErrTooManyIDs, len(ids))
	}

	query := url.Values{}
	query.Set("user_id", joinIDs(ids))

	var resp []friendshipResponse
	if err := c.do(ctx, c.client, http.MethodGet, endpointFriendships, query, &resp); err != nil {
		return nil, err
	}

	relations := make([]Relation, 0, len(resp))
	for _, f := range resp {
		relation := Relation{ID: f.ID}

		for _, conn := range f.Connections {
			switch conn {
			case connectionFollowing:
				relation.IsFriend = true
			case connectionFollowedBy:
				relation.IsFollower = true
			case connectionFollowingReq:
				relation.IsPending = true
			}
		}

		relations = append(relations, relation)
	}

	return relations, nil
}

// FetchProfiles implements API.
func (c *Client) FetchProfiles(ctx context.Context, ids []int64) ([]*types.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if len(ids) > MaxLookupBatch {
		return nil, fmt.Errorf("%w: %d", ErrTooManyIDs, len(ids))
	}

	query := url.Values{}
	query.Set("user_id", joinIDs(ids))

	var resp []userResponse
	if err := c.do(ctx, c.client, http.MethodGet, endpointUsersLookup, query, &resp); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	profiles := make([]*types.Profile, 0, len(resp))

	for i := range resp {
		profile, err := toProfile(&resp[i], now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", endpointUsersLookup, err)
		}

		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// Follow implements API.
func (c *Client) Follow(ctx context.Context, id int64) (*types.Profile, error) {
	return c.action(ctx, endpointFollow, id)
}

// Unfollow implements API.
func (c *Client) Unfollow(ctx context.Context, id int64) (*types.Profile, error) {
	return c.action(ctx, endpointUnfollow, id)
}

func (c *Client) action(ctx context.Context, endpoint string, id int64) (*types.Profile, error) {
	query := url.Values{}
	query.Set("user_id", strconv.FormatInt(id, 10))

	var resp userResponse
	if err := c.do(ctx, c.actions, http.MethodPost, endpoint, query, &resp); err != nil {
		return nil, err
	}

	profile, err := toProfile(&resp, c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}

	return profile, nil
}

// do sends one request and decodes a JSON response into out.
func (c *Client) do(
	ctx context.Context, client *retryablehttp.Client, method, endpoint string, query url.Values, out any,
) (err error) {
	start := c.clock.Now()
	defer func() {
		metrics.APIRequests.WithLabelValues(endpoint, metrics.Outcome(err)).Inc()
		metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: waiting for request slot: %w", endpoint, err)
	}

	target := c.baseURL.JoinPath(endpoint)
	target.RawQuery = query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", endpoint, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: doing request: %w", endpoint, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response body: %w", endpoint, err)
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Endpoint: endpoint, ResetAt: c.resetAt(res.Header)}
	case res.StatusCode < 200 || res.StatusCode > 299:
		c.logger.Debug("Request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", res.StatusCode),
			zap.ByteString("body", data))

		return &RemoteError{Endpoint: endpoint, Status: res.StatusCode, Body: string(data)}
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %w", endpoint, ErrMalformedResponse, err)
	}

	return nil
}

// resetAt reads the reset time of a 429 response.
func (c *Client) resetAt(header http.Header) time.Time {
	if reset, err := strconv.ParseInt(header.Get(headerRateLimitReset), 10, 64); err == nil {
		return time.Unix(reset, 0)
	}

	if seconds, err := strconv.Atoi(header.Get("Retry-After")); err == nil {
		return c.clock.Now().Add(time.Duration(seconds) * time.Second)
	}

	return c.clock.Now().Add(DefaultRateLimitWindow)
}

func toProfile(u *userResponse, fetchedAt time.Time) (*types.Profile, error) {
	profile := &types.Profile{
		ID:             u.ID,
		ScreenName:     u.ScreenName,
		Name:           u.Name,
		FriendsCount:   u.FriendsCount,
		FollowersCount: u.FollowersCount,
		Protected:      u.Protected,
		UpdatedAt:      fetchedAt,
	}

	if u.Status != nil && u.Status.CreatedAt != "" {
		createdAt, err := time.Parse(statusTimeLayout, u.Status.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: status time of %d: %w", ErrMalformedResponse, u.ID, err)
		}

		profile.LastStatusAt = &createdAt
	}

	return profile, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return strings.Join(parts, ",")
}
