package back

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"facerank/internal/rating"
	"facerank/internal/util"

	"github.com/jmoiron/sqlx"
)

// Drift is a photo whose stored standing differs from the one obtained by
// replaying the ledger.
type Drift struct {
	PhotoID  util.UUIDAsBlob `json:"photo_id"`
	Stored   Standing        `json:"stored"`
	Replayed Standing        `json:"replayed"`
}

// ReplayLedger recomputes the standing of every photo from its initial rating
// and the votes of the ledger, applied in commit order. It never writes.
func (b *Back) ReplayLedger(ctx context.Context) (map[util.UUIDAsBlob]Standing, error) {
	var ret map[util.UUIDAsBlob]Standing
	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, _, err = replayLedger(tx)
		return err
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

// VerifyRatings replays the ledger and returns every photo whose stored
// standing is not exactly the replayed one, ordered by photo ID.
func (b *Back) VerifyRatings(ctx context.Context) ([]Drift, error) {
	start := time.Now()
	ret := []Drift{}

	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		replayed, stored, err := replayLedger(tx)
		if err != nil {
			return err
		}

		for id, p := range stored {
			if p.Standing != replayed[id] {
				ret = append(ret, Drift{PhotoID: id, Stored: p.Standing, Replayed: replayed[id]})
			}
		}

		return nil
	}); err != nil {
		return nil, err
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i].PhotoID.Less(ret[j].PhotoID) })
	log.Printf("info: verified ratings in %s, %d drifts", time.Since(start), len(ret))

	return ret, nil
}

// replayLedger returns the replayed standings along with the stored photos
// they were computed from, both read in tx.
func replayLedger(tx *sqlx.Tx) (map[util.UUIDAsBlob]Standing, map[util.UUIDAsBlob]Photo, error) {
	var photos []Photo
	if err := tx.Select(&photos, `SELECT * FROM Photo`); err != nil {
		return nil, nil, fmt.Errorf("unable to fetch photos: %w", err)
	}

	stored := make(map[util.UUIDAsBlob]Photo, len(photos))
	standings := make(map[util.UUIDAsBlob]Standing, len(photos))
	for _, p := range photos {
		stored[p.ID] = p
		standings[p.ID] = NewStanding(p.InitialRating)
	}

	var count int
	if err := eachVote(tx, func(v Vote) error {
		winner, ok := standings[v.WinnerPhotoID]
		if !ok {
			return fmt.Errorf("vote %s references unknown winner %s", v.ID, v.WinnerPhotoID)
		}
		loser, ok := standings[v.LoserPhotoID]
		if !ok {
			return fmt.Errorf("vote %s references unknown loser %s", v.ID, v.LoserPhotoID)
		}

		standings[v.WinnerPhotoID], standings[v.LoserPhotoID] = playOutcome(
			rating.Elo{K: v.KFactor}, winner, loser,
		)
		count++

		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("unable to replay ledger: %w", err)
	}

	log.Printf("debug: replayed %d votes over %d photos", count, len(photos))

	return standings, stored, nil
}
