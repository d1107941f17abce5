package social

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, clockwork.FakeClock) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	client, err := NewClient(&config.API{
		BaseURL:        srv.URL,
		BearerToken:    "secret",
		ScreenName:     "operator",
		RequestTimeout: 5000,
		MaxRetries:     2,
		RetryWaitMin:   1,
		RetryWaitMax:   2,
	}, clock, zap.NewNop())
	require.NoError(t, err)

	return client, clock
}

func TestCheckRetry(t *testing.T) {
	t.Parallel()

	t.Run("doesn't retry on context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		retry, err := checkRetry(ctx, nil, nil)
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, retry)
	})

	t.Run("doesn't retry on rate limit", func(t *testing.T) {
		t.Parallel()

		retry, err := checkRetry(t.Context(), &http.Response{StatusCode: http.StatusTooManyRequests}, nil)
		require.NoError(t, err)
		require.False(t, retry)
	})

	t.Run("retries on server errors", func(t *testing.T) {
		t.Parallel()

		retry, err := checkRetry(t.Context(), &http.Response{StatusCode: http.StatusBadGateway}, nil)
		require.NoError(t, err)
		require.True(t, retry)
	})

	t.Run("doesn't retry on unrecoverable error", func(t *testing.T) {
		t.Parallel()

		retry, err := checkRetry(t.Context(), nil, &url.Error{Err: errors.New("unsupported protocol scheme")})
		require.NoError(t, err)
		require.False(t, retry)
	})
}

func TestFetchIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind enum.RelationKind
		path string
	}{
		{kind: enum.RelationKindFollower, path: endpointFollowersIDs},
		{kind: enum.RelationKindFriend, path: endpointFriendsIDs},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				assert.Equal(t, "operator", r.URL.Query().Get("screen_name"))
				assert.Equal(t, "-1", r.URL.Query().Get("cursor"))
				assert.Equal(t, "5000", r.URL.Query().Get("count"))

				_, _ = w.Write([]byte(`{"ids":[3,1,2],"next_cursor":1234,"previous_cursor":0}`))
			}))

			page, err := client.FetchIDs(t.Context(), tt.kind, CursorStart)
			require.NoError(t, err)
			assert.Equal(t, []int64{3, 1, 2}, page.IDs)
			assert.Equal(t, int64(1234), page.NextCursor)
			assert.False(t, page.Done())
		})
	}
}

func TestLookupRelations(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpointFriendships, r.URL.Path)
		assert.Equal(t, "1,2,3", r.URL.Query().Get("user_id"))

		_, _ = w.Write([]byte(`[
			{"id":1,"connections":["followed_by"]},
			{"id":2,"connections":["following","followed_by"]},
			{"id":3,"connections":["following_requested","followed_by"]}
		]`))
	}))

	relations, err := client.LookupRelations(t.Context(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []Relation{
		{ID: 1, IsFollower: true},
		{ID: 2, IsFriend: true, IsFollower: true},
		{ID: 3, IsFollower: true, IsPending: true},
	}, relations)

	assert.True(t, relations[0].ShouldFollow())
	assert.False(t, relations[1].ShouldFollow())
	assert.False(t, relations[2].ShouldFollow())
}

func TestLookupRelationsTooManyIDs(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))

	_, err := client.LookupRelations(t.Context(), make([]int64, MaxLookupBatch+1))
	require.ErrorIs(t, err, ErrTooManyIDs)
	assert.Zero(t, hits.Load())
}

func TestFetchProfiles(t *testing.T) {
	t.Parallel()

	client, clock := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpointUsersLookup, r.URL.Path)

		_, _ = w.Write([]byte(`[
			{"id":7,"screen_name":"seven","name":"Seven","friends_count":0,"followers_count":12,
			 "protected":true,"status":{"created_at":"Wed Aug 27 13:08:45 +0000 2008"}},
			{"id":8,"screen_name":"eight","name":"Eight","friends_count":3,"followers_count":4}
		]`))
	}))

	profiles, err := client.FetchProfiles(t.Context(), []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "seven", profiles[0].ScreenName)
	assert.True(t, profiles[0].Protected)
	require.NotNil(t, profiles[0].LastStatusAt)
	assert.True(t, profiles[0].LastStatusAt.Equal(time.Date(2008, 8, 27, 13, 8, 45, 0, time.UTC)))
	assert.Equal(t, clock.Now(), profiles[0].UpdatedAt)

	assert.Nil(t, profiles[1].LastStatusAt)
	assert.Equal(t, int64(3), profiles[1].FriendsCount)
}

func TestRateLimitResponse(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set(headerRateLimitReset, "1714567200")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.FetchIDs(t.Context(), enum.RelationKindFollower, CursorStart)
	require.ErrorIs(t, err, ErrRateLimited)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, time.Unix(1714567200, 0), rateErr.ResetAt)
	assert.Equal(t, endpointFollowersIDs, rateErr.Endpoint)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRateLimitWithoutResetHeader(t *testing.T) {
	t.Parallel()

	client, clock := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.LookupRelations(t.Context(), []int64{1})

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, clock.Now().Add(DefaultRateLimitWindow), rateErr.ResetAt)
}

func TestReadsRetryServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(`{"ids":[1],"next_cursor":0}`))
	}))

	page, err := client.FetchIDs(t.Context(), enum.RelationKindFriend, CursorStart)
	require.NoError(t, err)
	assert.True(t, page.Done())
	assert.Equal(t, int32(2), hits.Load())
}

func TestActionsAreNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, endpointFollow, r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("user_id"))

		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"code":131}]}`))
	}))

	_, err := client.Follow(t.Context(), 42)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.Status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestUnfollowReturnsProfile(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpointUnfollow, r.URL.Path)
		_, _ = w.Write([]byte(`{"id":42,"screen_name":"answer","name":"Answer"}`))
	}))

	profile, err := client.Unfollow(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), profile.ID)
	assert.Equal(t, "answer", profile.ScreenName)
}

func TestMalformedResponse(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ids":`))
	}))

	_, err := client.FetchIDs(t.Context(), enum.RelationKindFollower, CursorStart)
	require.ErrorIs(t, err, ErrMalformedResponse)
}
