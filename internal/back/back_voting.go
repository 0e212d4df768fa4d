package back

import (
	"context"
	"fmt"
	"time"

	"facerank/internal/rating"
	"facerank/internal/util"

	"github.com/jmoiron/sqlx"
)

// VoteResult is a committed vote along with both photos as they are after it.
type VoteResult struct {
	Vote   Vote  `json:"vote"`
	Winner Photo `json:"winner"`
	Loser  Photo `json:"loser"`
}

// RecordVote validates and applies the outcome of one comparison: the winner
// and loser ratings are updated and the vote appended to the ledger in the
// same transaction. Nothing is written when an error is returned.
func (b *Back) RecordVote(
	ctx context.Context,
	voterID string,
	winnerID, loserID util.UUIDAsBlob,
) (res VoteResult, err error) {
	start := time.Now()
	defer func() { observeVote(err, time.Since(start)) }()

	switch {
	case voterID == "":
		return VoteResult{}, ErrInvalidVote.withMessage("empty voter ID")
	case winnerID.IsZero() || loserID.IsZero():
		return VoteResult{}, ErrInvalidVote.withMessage("missing photo ID")
	case winnerID == loserID:
		return VoteResult{}, ErrInvalidVote.withMessage("a photo can't win against itself")
	}

	unlock, err := b.locks.lock(ctx, winnerID, loserID)
	if err != nil {
		return VoteResult{}, err
	}
	defer unlock()

	return b.tryRecordVote(ctx, voterID, winnerID, loserID)
}

// tryRecordVote reads both photos, computes and commits the outcome, retried
// as a whole when the commit could not be serialized.
func (b *Back) tryRecordVote(
	ctx context.Context,
	voterID string,
	winnerID, loserID util.UUIDAsBlob,
) (VoteResult, error) {
	var res VoteResult

	err := b.retryTransaction(ctx, "vote by "+voterID, func(tx *sqlx.Tx) error {
		photos, err := b.getPhotosForUpdate(tx, winnerID, loserID)
		if err != nil {
			return err
		}
		winner, loser := photos[winnerID], photos[loserID]

		for _, v := range []Photo{winner, loser} {
			if !v.Active() {
				return ErrPhotoInactive.withMessage(fmt.Sprintf("photo %s is not active", v.ID))
			}
		}

		if !b.config.AllowSelfVote && (winner.OwnerID == voterID || loser.OwnerID == voterID) {
			return ErrSelfVote
		}

		now := time.Now()
		if window := b.config.DuplicateVoteWindow.Duration(); window > 0 {
			dup, err := existsDuplicate(tx, voterID, winnerID, loserID, now.Add(-window))
			if err != nil {
				return fmt.Errorf("unable to check for duplicate vote: %w", err)
			}
			if dup {
				return ErrDuplicateVote
			}
		}

		vote := NewVote(voterID, winnerID, loserID, now, b.config.KFactor)
		winner.Standing, loser.Standing = playOutcome(
			rating.Elo{K: vote.KFactor},
			winner.Standing, loser.Standing,
		)

		if err := commitRatings(tx, &winner, &loser, &vote); err != nil {
			return err
		}

		res = VoteResult{Vote: vote, Winner: winner, Loser: loser}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}

	return res, nil
}

// commitRatings writes the new standings of both photos and appends the vote
// that produced them, all of it in the caller's transaction.
func commitRatings(tx *sqlx.Tx, winner, loser *Photo, vote *Vote) error {
	if err := winner.updateStanding(tx); err != nil {
		return fmt.Errorf("unable to update winner: %w", err)
	}

	if err := loser.updateStanding(tx); err != nil {
		return fmt.Errorf("unable to update loser: %w", err)
	}

	return appendVote(tx, vote)
}
