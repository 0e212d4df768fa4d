package back

import (
	"context"
	"fmt"
	"time"

	"facerank/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// A Vote is the immutable record of a voter preferring one photo over
// another. The ledger of all votes is enough to recompute every rating.
type Vote struct {
	// Seq is the commit order, it is assigned by the database.
	Seq           int64                `json:"seq"`
	ID            util.UUIDAsBlob      `json:"id"`
	VoterID       string               `json:"voter_id"`
	WinnerPhotoID util.UUIDAsBlob      `json:"winner_photo_id"`
	LoserPhotoID  util.UUIDAsBlob      `json:"loser_photo_id"`
	CastAt        util.TimeAsUnixMilli `json:"cast_at"`

	// KFactor is the ELO K used to apply this vote.
	KFactor float64 `json:"k_factor"`
}

func NewVote(voterID string, winnerID, loserID util.UUIDAsBlob, castAt time.Time, k float64) Vote {
	return Vote{
		ID:            util.NewUUIDAsBlob(),
		VoterID:       voterID,
		WinnerPhotoID: winnerID,
		LoserPhotoID:  loserID,
		CastAt:        util.NewTimeAsUnixMilli(castAt),
		KFactor:       k,
	}
}

// appendVote adds the vote to the ledger, this must only ever be called as
// part of commitRatings.
func appendVote(tx *sqlx.Tx, v *Vote) error {
	query, args, err := squirrel.Insert("Vote").SetMap(squirrel.Eq{
		"ID":            v.ID,
		"VoterID":       v.VoterID,
		"WinnerPhotoID": v.WinnerPhotoID,
		"LoserPhotoID":  v.LoserPhotoID,
		"CastAt":        v.CastAt,
		"KFactor":       v.KFactor,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("unable to append Vote: %w", err)
	}

	// Seq is needed by callers, RETURNING is not portable across our drivers.
	if err := tx.Get(&v.Seq, tx.Rebind(`SELECT Seq FROM Vote WHERE ID = ?`), v.ID); err != nil {
		return fmt.Errorf("unable to fetch Vote sequence: %w", err)
	}

	return nil
}

// existsDuplicate returns true if the voter already voted on the same two
// photos, in either order, since the given time.
func existsDuplicate(tx *sqlx.Tx, voterID string, a, b util.UUIDAsBlob, since time.Time) (bool, error) {
	query, args, err := squirrel.Select("COUNT(*)").From("Vote").Where(squirrel.And{
		squirrel.Eq{"VoterID": voterID},
		squirrel.GtOrEq{"CastAt": util.NewTimeAsUnixMilli(since)},
		squirrel.Or{
			squirrel.Expr("WinnerPhotoID = ? AND LoserPhotoID = ?", a, b),
			squirrel.Expr("WinnerPhotoID = ? AND LoserPhotoID = ?", b, a),
		},
	}).ToSql()
	if err != nil {
		return false, err
	}

	var count int
	if err := tx.Get(&count, tx.Rebind(query), args...); err != nil {
		return false, err
	}

	return count > 0, nil
}

// ExistsDuplicate is existsDuplicate outside of a vote commit, window is how
// far back in time to look.
func (b *Back) ExistsDuplicate(
	ctx context.Context, voterID string, photoA, photoB util.UUIDAsBlob, window time.Duration,
) (found bool, _ error) {
	return found, b.readTransaction(ctx, func(tx *sqlx.Tx) (err error) {
		found, err = existsDuplicate(tx, voterID, photoA, photoB, time.Now().Add(-window))
		return err
	})
}

// GetVotes pages through the ledger in commit order, returning at most limit
// votes with a Seq greater than afterSeq.
func (b *Back) GetVotes(ctx context.Context, afterSeq int64, limit int) ([]Vote, error) {
	if limit < 1 || afterSeq < 0 {
		return nil, ErrInvalidArgument.withMessage("limit must be ≥ 1 and after ≥ 0")
	}

	ret := make([]Vote, 0, limit)
	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT * FROM Vote WHERE Seq > ? ORDER BY Seq ASC LIMIT ?`)
		return tx.Select(&ret, query, afterSeq, limit)
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

// eachVote calls fn for every vote of the ledger in commit order.
func eachVote(tx *sqlx.Tx, fn func(Vote) error) error {
	rows, err := tx.Queryx(`SELECT * FROM Vote ORDER BY Seq ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v Vote
		if err := rows.StructScan(&v); err != nil {
			return err
		}

		if err := fn(v); err != nil {
			return err
		}
	}

	return rows.Err()
}
