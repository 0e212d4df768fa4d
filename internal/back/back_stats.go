package back

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

// Stats holds totals about the photos and the vote ledger.
type Stats struct {
	Photos       int `json:"photos"`
	ActivePhotos int `json:"active_photos"`
	Owners       int `json:"owners"`
	BannedOwners int `json:"banned_owners"`
	Votes        int `json:"votes"`
	Voters       int `json:"voters"`

	// MeanRating is over active photos, it stays close to the initial rating
	// as long as no photo left the pool.
	MeanRating null.Float `json:"mean_rating"`

	FirstVoteAt null.Time `json:"first_vote_at"`
	LastVoteAt  null.Time `json:"last_vote_at"`
}

func (b *Back) GetStats(ctx context.Context) (stats Stats, _ error) {
	start := time.Now()
	defer func() { log.Printf("debug: computed stats in %s", time.Since(start)) }()

	var first, last null.Int
	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		queries := []struct {
			Dst   interface{}
			Query string
		}{
			{&stats.Photos, `SELECT COUNT(*) FROM Photo`},
			{&stats.ActivePhotos, `SELECT COUNT(*) FROM Photo WHERE DeletedAt IS NULL AND BannedAt IS NULL`},
			{&stats.Owners, `SELECT COUNT(DISTINCT OwnerID) FROM Photo`},
			{&stats.BannedOwners, `SELECT COUNT(*) FROM BannedOwner`},
			{&stats.Votes, `SELECT COUNT(*) FROM Vote`},
			{&stats.Voters, `SELECT COUNT(DISTINCT VoterID) FROM Vote`},
			{&stats.MeanRating, `SELECT AVG(Rating) FROM Photo WHERE DeletedAt IS NULL AND BannedAt IS NULL`},
			{&first, `SELECT MIN(CastAt) FROM Vote`},
			{&last, `SELECT MAX(CastAt) FROM Vote`},
		}

		for _, v := range queries {
			if err := tx.Get(v.Dst, v.Query); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return Stats{}, err
	}

	stats.FirstVoteAt = unixMilliToNullTime(first)
	stats.LastVoteAt = unixMilliToNullTime(last)

	return stats, nil
}

func unixMilliToNullTime(ms null.Int) null.Time {
	if !ms.Valid {
		return null.Time{}
	}

	return null.TimeFrom(time.UnixMilli(ms.Int64).UTC())
}
