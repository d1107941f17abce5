package rest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/rest"
	restTypes "github.com/robalyx/reciprocal/internal/rest/types"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/robalyx/reciprocal/internal/worker/workertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLister struct {
	statuses []core.Status
	err      error
}

func (s *stubLister) GetAllStatuses(context.Context) ([]core.Status, error) {
	return s.statuses, s.err
}

func newServer(t *testing.T, lister *stubLister) (http.Handler, *workertest.Env) {
	t.Helper()

	env := workertest.New()
	cfg := config.Default().Common.REST

	if lister == nil {
		lister = &stubLister{}
	}

	return rest.NewServer(env.Store, env.API, env.Deps.Caller, lister, env.Clock, &cfg, zap.NewNop()), env
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequestWithContext(t.Context(), method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func pushCandidates(t *testing.T, env *workertest.Env, ids ...int64) {
	t.Helper()

	for _, id := range ids {
		_, err := env.Store.RemoveCandidates().Push(t.Context(), types.RemoveCandidate{UserID: id})
		require.NoError(t, err)
	}
}

func TestListCandidatesConfirmsOneSided(t *testing.T) {
	t.Parallel()

	h, env := newServer(t, nil)
	ctx := t.Context()

	env.API.SetRelation(social.Relation{ID: 1, IsFriend: true})
	env.API.SetRelation(social.Relation{ID: 2, IsFriend: true, IsFollower: true})
	env.API.SetRelation(social.Relation{ID: 3, IsFriend: true})
	env.API.SetRelation(social.Relation{ID: 4, IsFriend: true, IsPending: true})
	env.API.SetProfile(&types.Profile{ID: 1, ScreenName: "one"})
	require.NoError(t, env.Store.AddToWhitelist(ctx, 3))

	pushCandidates(t, env, 1, 2, 3, 4, 1)

	rec := serve(t, h, http.MethodGet, "/v1/remove_candidates", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp restTypes.ListCandidatesResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 5, resp.Popped)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, int64(1), resp.Candidates[0].ID)
	assert.Equal(t, "one", resp.Candidates[0].ScreenName)

	for _, lookup := range env.API.Lookups() {
		assert.NotContains(t, lookup, int64(3))
	}

	n, err := env.Store.RemoveCandidates().Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListCandidatesLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantPopped int
	}{
		{name: "default", query: "", wantStatus: http.StatusOK, wantPopped: 20},
		{name: "explicit", query: "?limit=3", wantStatus: http.StatusOK, wantPopped: 3},
		{name: "capped", query: "?limit=500", wantStatus: http.StatusOK, wantPopped: 25},
		{name: "zero", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "not a number", query: "?limit=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, env := newServer(t, nil)

			ids := make([]int64, 0, 25)
			for id := int64(1); id <= 25; id++ {
				ids = append(ids, id)
			}

			pushCandidates(t, env, ids...)

			rec := serve(t, h, http.MethodGet, "/v1/remove_candidates"+tt.query, "")
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp restTypes.ListCandidatesResponse
			require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantPopped, resp.Popped)
			assert.Empty(t, resp.Candidates)
		})
	}
}

func TestListCandidatesRateLimitedRequeues(t *testing.T) {
	t.Parallel()

	h, env := newServer(t, nil)

	env.API.PushError(&social.RateLimitError{
		Endpoint: "friendships/lookup",
		ResetAt:  workertest.Epoch.Add(30 * time.Second),
	})
	pushCandidates(t, env, 1, 2)

	rec := serve(t, h, http.MethodGet, "/v1/remove_candidates", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	n, err := env.Store.RemoveCandidates().Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListCandidatesRemoteErrorRequeues(t *testing.T) {
	t.Parallel()

	h, env := newServer(t, nil)

	env.API.PushError(&social.RemoteError{Endpoint: "friendships/lookup", Status: http.StatusInternalServerError})
	pushCandidates(t, env, 1)

	rec := serve(t, h, http.MethodGet, "/v1/remove_candidates", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	assert.ElementsMatch(t, []types.RemoveCandidate{{UserID: 1}}, env.Store.CandidateQueue().Payloads())
}

func TestConfirmRemove(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantQueued []types.Action
	}{
		{
			name:       "queues remove",
			body:       `{"userId":7}`,
			wantStatus: http.StatusAccepted,
			wantQueued: []types.Action{{Type: enum.ActionTypeRemove, UserID: 7}},
		},
		{name: "malformed", body: `{"userId":`, wantStatus: http.StatusBadRequest},
		{name: "missing id", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "negative id", body: `{"userId":-4}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, env := newServer(t, nil)

			rec := serve(t, h, http.MethodPost, "/v1/remove_candidates/confirm", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			queued := env.Store.ActionQueue().Payloads()
			if tt.wantQueued == nil {
				assert.Empty(t, queued)
				return
			}

			assert.Equal(t, tt.wantQueued, queued)
		})
	}
}

func TestAddToWhitelist(t *testing.T) {
	t.Parallel()

	h, env := newServer(t, nil)
	ctx := t.Context()

	for range 2 {
		rec := serve(t, h, http.MethodPost, "/v1/whitelist", `{"userId":9}`)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	ok, err := env.Store.IsWhitelisted(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)

	rec := serve(t, h, http.MethodPost, "/v1/whitelist", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListWorkers(t *testing.T) {
	t.Parallel()

	lister := &stubLister{statuses: []core.Status{
		{WorkerID: "a", WorkerType: "listener", State: "idle", LastSeen: workertest.Epoch, IsHealthy: true},
		{WorkerID: "b", WorkerType: "remover", State: "running", LastSeen: workertest.Epoch.Add(-time.Hour)},
	}}

	h, _ := newServer(t, lister)

	rec := serve(t, h, http.MethodGet, "/v1/workers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp restTypes.ListWorkersResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Workers, 2)

	assert.Equal(t, "a", resp.Workers[0].WorkerID)
	assert.False(t, resp.Workers[0].Stale)
	assert.Equal(t, "b", resp.Workers[1].WorkerID)
	assert.True(t, resp.Workers[1].Stale)
}

func TestListWorkersError(t *testing.T) {
	t.Parallel()

	h, _ := newServer(t, &stubLister{err: errors.New("redis down")})

	rec := serve(t, h, http.MethodGet, "/v1/workers", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
