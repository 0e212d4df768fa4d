// Package facerankapi is an API client for the facerank HTTP API v1.
package facerankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxRateLimitedTries = 5

// API holds the necessary state to communicate with a facerank server.
type API struct {
	http    http.Client
	baseURL url.URL
	limiter *rate.Limiter
}

// New creates a new rate-limited access point to the API at baseURL, the
// client never sends more than perSecond requests per second.
func New(baseURL string, perSecond float64) (*API, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	return &API{
		baseURL: *u,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		http: http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// APIError is an error response of the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsRetryable returns true if sending the same request later may succeed.
func (e *APIError) IsRetryable() bool {
	return e.Status == http.StatusServiceUnavailable || e.Code == "rate_limited"
}

type Standing struct {
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
}

type Photo struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Standing
	Active     bool `json:"active"`
	TotalVotes int  `json:"total_votes"`
}

type Vote struct {
	Seq           int64     `json:"seq"`
	ID            uuid.UUID `json:"id"`
	VoterID       string    `json:"voter_id"`
	WinnerPhotoID uuid.UUID `json:"winner_photo_id"`
	LoserPhotoID  uuid.UUID `json:"loser_photo_id"`
	CastAt        time.Time `json:"cast_at"`
	KFactor       float64   `json:"k_factor"`
}

type VoteResult struct {
	Vote   Vote  `json:"vote"`
	Winner Photo `json:"winner"`
	Loser  Photo `json:"loser"`
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	PhotoID    uuid.UUID `json:"photo_id"`
	OwnerID    string    `json:"owner_id"`
	Rating     float64   `json:"rating"`
	Deviation  float64   `json:"deviation"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	TotalVotes int       `json:"total_votes"`
}

type Stats struct {
	Photos       int        `json:"photos"`
	ActivePhotos int        `json:"active_photos"`
	Owners       int        `json:"owners"`
	BannedOwners int        `json:"banned_owners"`
	Votes        int        `json:"votes"`
	Voters       int        `json:"voters"`
	MeanRating   *float64   `json:"mean_rating"`
	FirstVoteAt  *time.Time `json:"first_vote_at"`
	LastVoteAt   *time.Time `json:"last_vote_at"`
}

func (api *API) getURL(subPath string, q url.Values) string {
	u := api.baseURL
	u.Path = path.Join(u.Path, "/v1", subPath)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// CreatePhoto registers a new photo for the given owner.
func (api *API) CreatePhoto(ctx context.Context, ownerID string) (Photo, error) {
	var ret Photo
	err := api.do(ctx, http.MethodPost, api.getURL("/photos", nil), nil,
		map[string]string{"owner_id": ownerID}, &ret)

	return ret, err
}

func (api *API) GetPhoto(ctx context.Context, id uuid.UUID) (Photo, error) {
	var ret Photo
	err := api.do(ctx, http.MethodGet, api.getURL("/photos/"+id.String(), nil), nil, nil, &ret)

	return ret, err
}

func (api *API) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	return api.do(ctx, http.MethodDelete, api.getURL("/photos/"+id.String(), nil), nil, nil, nil)
}

// GetPair returns two distinct photos to compare, none of them owned by
// excludeOwnerID if it is not empty.
func (api *API) GetPair(ctx context.Context, excludeOwnerID string) (Photo, Photo, error) {
	q := url.Values{}
	if excludeOwnerID != "" {
		q.Set("exclude_owner", excludeOwnerID)
	}

	var res struct {
		PhotoA Photo `json:"photo_a"`
		PhotoB Photo `json:"photo_b"`
	}
	if err := api.do(ctx, http.MethodGet, api.getURL("/pair", q), nil, nil, &res); err != nil {
		return Photo{}, Photo{}, err
	}

	return res.PhotoA, res.PhotoB, nil
}

// CastVote records that voterID preferred winnerID over loserID. The
// idempotency key makes retrying after a network failure safe, a fresh one is
// used when key is empty.
func (api *API) CastVote(
	ctx context.Context, key, voterID string, winnerID, loserID uuid.UUID,
) (VoteResult, error) {
	if key == "" {
		key = uuid.NewString()
	}

	var ret VoteResult
	err := api.do(ctx, http.MethodPost, api.getURL("/votes", nil),
		http.Header{"Idempotency-Key": {key}},
		map[string]interface{}{
			"voter_id":        voterID,
			"winner_photo_id": winnerID,
			"loser_photo_id":  loserID,
		},
		&ret,
	)

	return ret, err
}

// Leaderboard returns a page of the ranking, limit 0 lets the server choose.
func (api *API) Leaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	q := url.Values{"offset": {strconv.Itoa(offset)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var ret []LeaderboardEntry
	err := api.do(ctx, http.MethodGet, api.getURL("/leaderboard", q), nil, nil, &ret)

	return ret, err
}

func (api *API) Stats(ctx context.Context) (Stats, error) {
	var ret Stats
	err := api.do(ctx, http.MethodGet, api.getURL("/stats", nil), nil, nil, &ret)

	return ret, err
}

// Votes returns at most limit votes of the ledger committed after afterSeq.
func (api *API) Votes(ctx context.Context, afterSeq int64, limit int) ([]Vote, error) {
	q := url.Values{
		"after": {strconv.FormatInt(afterSeq, 10)},
		"limit": {strconv.Itoa(limit)},
	}

	var ret []Vote
	err := api.do(ctx, http.MethodGet, api.getURL("/votes", q), nil, nil, &ret)

	return ret, err
}

func (api *API) BanOwner(ctx context.Context, ownerID string) (int64, error) {
	return api.moderate(ctx, ownerID, "ban")
}

func (api *API) UnbanOwner(ctx context.Context, ownerID string) (int64, error) {
	return api.moderate(ctx, ownerID, "unban")
}

func (api *API) moderate(ctx context.Context, ownerID, action string) (int64, error) {
	var res struct {
		PhotosAffected int64 `json:"photos_affected"`
	}
	err := api.do(ctx, http.MethodPost,
		api.getURL(path.Join("/owners", url.PathEscape(ownerID), action), nil),
		nil, nil, &res,
	)

	return res.PhotosAffected, err
}

// do performs a rate-limited request on the API and writes the JSON-decoded
// response body in response. If response is nil the body is discarded.
// Requests rejected by the server rate-limiter are retried a few times.
func (api *API) do(
	ctx context.Context,
	method, url string,
	header http.Header,
	body, response interface{},
) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return err
		}
	}

	var tries int
	for {
		err := api.doInner(ctx, method, url, header, raw, response)

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "rate_limited" && tries < maxRateLimitedTries {
			tries++
			log.Printf("warning: rate-limited %d times", tries)
			continue
		}

		return err
	}
}

func (api *API) doInner(
	ctx context.Context,
	method, url string,
	header http.Header,
	body []byte,
	response interface{},
) error {
	start := time.Now()
	if err := api.limiter.Wait(ctx); err != nil {
		return err
	}
	log.Printf("debug: waited %s before calling API", time.Since(start))

	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range header {
		request.Header[k] = v
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	res, err := api.http.Do(request)
	if err != nil {
		return fmt.Errorf("unable to perform HTTP request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Status: res.StatusCode}
		if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(apiErr); err != nil {
			apiErr.Message = fmt.Sprintf("unable to parse error body: %s", err)
		}

		return apiErr
	}

	if response == nil {
		return nil
	}

	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(response); err != nil {
		return fmt.Errorf("unable to parse response: %w", err)
	}

	return nil
}
