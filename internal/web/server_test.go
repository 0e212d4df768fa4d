package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"facerank/internal/back"
	"facerank/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestServer(t *testing.T, opts ...func(*config.Config)) *httptest.Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "facerank.db")
	migrator, err := migrate.New("file://../../resources/migrations/sqlite3", "sqlite3://"+path)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	migrator.Close()

	cfg := config.Default()
	cfg.SQLDSN = path
	for _, fn := range opts {
		fn(&cfg)
	}

	b, err := back.New(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(NewServer(b).Handler())
	t.Cleanup(func() {
		ts.Close()
		b.Close()
	})

	return ts
}

func do(
	t *testing.T, ts *httptest.Server, method, path string, body interface{}, header http.Header,
) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader) // nolint:noctx
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res, raw
}

func createPhoto(t *testing.T, ts *httptest.Server, owner string) string {
	t.Helper()

	res, raw := do(t, ts, http.MethodPost, "/v1/photos", createPhotoRequest{OwnerID: owner}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))

	var photo struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &photo))

	return photo.ID
}

func vote(voter, winner, loser string) map[string]string {
	return map[string]string{"voter_id": voter, "winner_photo_id": winner, "loser_photo_id": loser}
}

func requireErrorCode(t *testing.T, res *http.Response, raw []byte, status int, code string) {
	t.Helper()

	require.Equal(t, status, res.StatusCode, string(raw))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Message)
}

func TestHealth(t *testing.T) {
	ts := createTestServer(t)

	res, raw := do(t, ts, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestVoteFlow(t *testing.T) {
	ts := createTestServer(t)
	a := createPhoto(t, ts, "alice")
	b := createPhoto(t, ts, "bob")

	res, raw := do(t, ts, http.MethodGet, "/v1/pair?exclude_owner=carol", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(raw))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	var pair struct {
		PhotoA struct{ ID string } `json:"photo_a"`
		PhotoB struct{ ID string } `json:"photo_b"`
	}
	require.NoError(t, json.Unmarshal(raw, &pair))
	assert.ElementsMatch(t, []string{a, b}, []string{pair.PhotoA.ID, pair.PhotoB.ID})

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))
	var result struct {
		Vote   struct{ Seq int64 } `json:"vote"`
		Winner struct {
			Rating float64 `json:"rating"`
			Wins   int     `json:"wins"`
		} `json:"winner"`
		Loser struct {
			Rating float64 `json:"rating"`
			Losses int     `json:"losses"`
		} `json:"loser"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, int64(1), result.Vote.Seq)
	assert.Equal(t, 1216.0, result.Winner.Rating)
	assert.Equal(t, 1, result.Winner.Wins)
	assert.Equal(t, 1184.0, result.Loser.Rating)
	assert.Equal(t, 1, result.Loser.Losses)

	res, raw = do(t, ts, http.MethodGet, "/v1/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(raw))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	var entries []back.LeaderboardEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0].PhotoID.String())
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)

	res, raw = do(t, ts, http.MethodGet, "/v1/votes?after=0&limit=10", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(raw))
	var votes []back.Vote
	require.NoError(t, json.Unmarshal(raw, &votes))
	require.Len(t, votes, 1)
	assert.Equal(t, "carol", votes[0].VoterID)
}

func TestVoteErrors(t *testing.T) {
	ts := createTestServer(t)

	res, raw := do(t, ts, http.MethodGet, "/v1/pair", nil, nil)
	requireErrorCode(t, res, raw, http.StatusConflict, "not_enough_photos")

	a := createPhoto(t, ts, "alice")
	b := createPhoto(t, ts, "bob")
	c := createPhoto(t, ts, "carol")

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("alice", a, b), nil)
	requireErrorCode(t, res, raw, http.StatusForbidden, "self_vote")

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, a), nil)
	requireErrorCode(t, res, raw, http.StatusBadRequest, "invalid_vote")

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"), nil)
	requireErrorCode(t, res, raw, http.StatusNotFound, "not_found")

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, "garbage"), nil)
	requireErrorCode(t, res, raw, http.StatusBadRequest, "invalid_argument")

	res, _ = do(t, ts, http.MethodDelete, "/v1/photos/"+c, nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, c), nil)
	requireErrorCode(t, res, raw, http.StatusGone, "photo_inactive")

	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, b), nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))
	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", b, a), nil)
	requireErrorCode(t, res, raw, http.StatusTooManyRequests, "duplicate_vote")

	res, raw = do(t, ts, http.MethodGet, "/v1/photos/nope", nil, nil)
	requireErrorCode(t, res, raw, http.StatusBadRequest, "invalid_argument")

	res, raw = do(t, ts, http.MethodGet, "/v1/leaderboard?offset=-1", nil, nil)
	requireErrorCode(t, res, raw, http.StatusBadRequest, "invalid_argument")

	res, raw = do(t, ts, http.MethodGet, "/v1/leaderboard?limit=ten", nil, nil)
	requireErrorCode(t, res, raw, http.StatusBadRequest, "invalid_argument")
}

func TestIdempotentVote(t *testing.T) {
	ts := createTestServer(t, func(c *config.Config) {
		c.DuplicateVoteWindow = 0
	})
	a := createPhoto(t, ts, "alice")
	b := createPhoto(t, ts, "bob")
	header := http.Header{idempotencyKeyHeader: {"retry-me"}}

	first, firstBody := do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), header)
	require.Equal(t, http.StatusCreated, first.StatusCode, string(firstBody))

	second, secondBody := do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), header)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, firstBody, secondBody)

	// Same key from another voter is another request.
	third, raw := do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, b), header)
	require.Equal(t, http.StatusCreated, third.StatusCode, string(raw))

	res, raw := do(t, ts, http.MethodGet, "/v1/votes", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var votes []back.Vote
	require.NoError(t, json.Unmarshal(raw, &votes))
	assert.Len(t, votes, 2)
}

func TestVoteRateLimit(t *testing.T) {
	ts := createTestServer(t, func(c *config.Config) {
		c.VoteRatePerMinute = 2
		c.DuplicateVoteWindow = 0
	})
	a := createPhoto(t, ts, "alice")
	b := createPhoto(t, ts, "bob")

	for i := 0; i < 2; i++ {
		res, raw := do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), nil)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))
	}

	res, raw := do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), nil)
	requireErrorCode(t, res, raw, http.StatusTooManyRequests, "rate_limited")

	// Other voters have their own budget.
	res, raw = do(t, ts, http.MethodPost, "/v1/votes", vote("dave", a, b), nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))
}

func TestOwnerModeration(t *testing.T) {
	ts := createTestServer(t)
	createPhoto(t, ts, "mallory")
	createPhoto(t, ts, "mallory")
	createPhoto(t, ts, "alice")

	res, raw := do(t, ts, http.MethodPost, "/v1/owners/mallory/ban", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(raw))
	assert.JSONEq(t, `{"photos_affected":2}`, string(raw))

	res, raw = do(t, ts, http.MethodGet, "/v1/owners/mallory/photos", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var photos []struct {
		Active bool `json:"active"`
	}
	require.NoError(t, json.Unmarshal(raw, &photos))
	require.Len(t, photos, 2)
	for _, v := range photos {
		assert.False(t, v.Active)
	}

	res, raw = do(t, ts, http.MethodGet, "/v1/pair", nil, nil)
	requireErrorCode(t, res, raw, http.StatusConflict, "not_enough_photos")

	res, raw = do(t, ts, http.MethodPost, "/v1/owners/mallory/unban", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(raw))
	assert.JSONEq(t, `{"photos_affected":2}`, string(raw))
}

func TestMetrics(t *testing.T) {
	ts := createTestServer(t)
	a := createPhoto(t, ts, "alice")
	b := createPhoto(t, ts, "bob")
	res, raw := do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))

	res, raw = do(t, ts, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	for _, name := range []string{"facerank_votes_total", "facerank_vote_commit_seconds"} {
		assert.Contains(t, string(raw), name, fmt.Sprintf("missing %s", name))
	}
}

func TestStats(t *testing.T) {
	ts := createTestServer(t)
	a := createPhoto(t, ts, "alice")
	b := createPhoto(t, ts, "bob")
	res, raw := do(t, ts, http.MethodPost, "/v1/votes", vote("carol", a, b), nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(raw))

	res, raw = do(t, ts, http.MethodGet, "/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(raw))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &stats))
	assert.EqualValues(t, 2, stats["photos"])
	assert.EqualValues(t, 1, stats["votes"])
	assert.EqualValues(t, 1200, stats["mean_rating"])
}
