package back

import (
	"context"
	"fmt"

	"facerank/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const DefaultLeaderboardLimit = 20

type LeaderboardEntry struct {
	Rank       int             `json:"rank"`
	PhotoID    util.UUIDAsBlob `json:"photo_id"`
	OwnerID    string          `json:"owner_id"`
	Rating     float64         `json:"rating"`
	Deviation  float64         `json:"deviation"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	TotalVotes int             `json:"total_votes"`
}

func newLeaderboardEntry(rank int, p Photo) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:       rank,
		PhotoID:    p.ID,
		OwnerID:    p.OwnerID,
		Rating:     p.Rating,
		Deviation:  p.Deviation,
		Wins:       p.Wins,
		Losses:     p.Losses,
		TotalVotes: p.TotalVotes(),
	}
}

// Leaderboard returns a page of the active photos, best first. Ties on rating
// are broken by vote count then by ID so the order is total and a given
// state always yields the same ranks.
// A limit of 0 means the default page size, it is capped by configuration.
func (b *Back) Leaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if limit < 0 || offset < 0 {
		return nil, ErrInvalidArgument.withMessage("limit and offset must be ≥ 0")
	}
	if limit == 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > b.config.LeaderboardMaxLimit {
		limit = b.config.LeaderboardMaxLimit
	}

	var cond squirrel.Sqlizer = activePhoto()
	if minVotes := b.config.LeaderboardMinVotes; minVotes > 0 {
		cond = squirrel.And{cond, squirrel.Expr("Wins + Losses >= ?", minVotes)}
	}

	query, args, err := squirrel.Select("*").From("Photo").
		Where(cond).
		OrderBy("Rating DESC", "Wins + Losses DESC", "ID ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var photos []Photo
	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		return tx.Select(&photos, tx.Rebind(query), args...)
	}); err != nil {
		return nil, fmt.Errorf("unable to fetch leaderboard: %w", err)
	}

	ret := make([]LeaderboardEntry, 0, len(photos))
	for k := range photos {
		ret = append(ret, newLeaderboardEntry(offset+k+1, photos[k]))
	}

	return ret, nil
}
