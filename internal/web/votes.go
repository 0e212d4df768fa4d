package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"facerank/internal/util"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	defaultVotesPage     = 100
	maxVotesPage         = 1000
)

type castVoteRequest struct {
	VoterID       string          `json:"voter_id"`
	WinnerPhotoID util.UUIDAsBlob `json:"winner_photo_id"`
	LoserPhotoID  util.UUIDAsBlob `json:"loser_photo_id"`
}

// castVote records a vote. A client retrying with the same Idempotency-Key
// gets the response of the first attempt instead of a second vote.
func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := decodeBody(r, &req); err != nil {
		s.error(w, err)
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		status, body := s.recordVote(r.Context(), req)
		s.write(w, status, body)
		return
	}

	status, body, replayed, err := s.idempotency.do(r.Context(), req.VoterID+"\x00"+key,
		func() (int, []byte) { return s.recordVote(r.Context(), req) },
		// Rejections that may go away on their own are not remembered.
		func(status int) bool {
			return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
		},
	)
	if err != nil {
		s.error(w, err)
		return
	}

	if replayed {
		log.Printf("debug: replaying response for %s key %q", req.VoterID, key)
		w.Header().Set("Idempotent-Replayed", "true")
	}
	s.write(w, status, body)
}

func (s *Server) recordVote(ctx context.Context, req castVoteRequest) (int, []byte) {
	status, payload := http.StatusCreated, interface{}(nil)

	if !s.limiters.allow(req.VoterID, time.Now()) {
		status, payload = errorResponseOf(errRateLimited)
	} else if res, err := s.back.RecordVote(ctx, req.VoterID, req.WinnerPhotoID, req.LoserPhotoID); err != nil {
		status, payload = errorResponseOf(err)
	} else {
		payload = res
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("error: unable to marshal vote response: %s", err)
		return http.StatusInternalServerError, internalErrorBody
	}

	return status, body
}

func (s *Server) getVotes(w http.ResponseWriter, r *http.Request) {
	after, err := queryInt(r, "after", 0)
	if err != nil {
		s.error(w, err)
		return
	}

	limit, err := queryInt(r, "limit", defaultVotesPage)
	if err != nil {
		s.error(w, err)
		return
	}
	if limit > maxVotesPage {
		limit = maxVotesPage
	}

	votes, err := s.back.GetVotes(r.Context(), int64(after), limit)
	if err != nil {
		s.error(w, err)
		return
	}

	s.response(w, http.StatusOK, votes)
}
