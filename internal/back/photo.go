package back

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"facerank/internal/rating"
	"facerank/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

// Standing is everything a comparison outcome changes on a photo.
type Standing struct {
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
}

func NewStanding(initialRating float64) Standing {
	u := rating.InitialUncertainty()

	return Standing{
		Rating:     initialRating,
		Deviation:  u.Deviation,
		Volatility: u.Volatility,
	}
}

func (s Standing) TotalVotes() int {
	return s.Wins + s.Losses
}

func (s Standing) uncertainty() rating.Uncertainty {
	return rating.Uncertainty{Deviation: s.Deviation, Volatility: s.Volatility}
}

// playOutcome returns the standings of the winner and the loser after one
// comparison between them.
func playOutcome(elo rating.Elo, winner, loser Standing) (Standing, Standing) {
	wu, lu := rating.UpdateUncertainty(
		winner.Rating, winner.uncertainty(),
		loser.Rating, loser.uncertainty(),
	)

	winner.Rating, loser.Rating = elo.Update(winner.Rating, loser.Rating)
	winner.Deviation, winner.Volatility = wu.Deviation, wu.Volatility
	loser.Deviation, loser.Volatility = lu.Deviation, lu.Volatility
	winner.Wins++
	loser.Losses++

	return winner, loser
}

// A Photo is an uploaded picture competing on the leaderboard. The engine
// only knows its identifier and owner, the image itself lives elsewhere.
type Photo struct {
	ID        util.UUIDAsBlob      `json:"id"`
	OwnerID   string               `json:"owner_id"`
	CreatedAt util.TimeAsUnixMilli `json:"created_at"`

	// InitialRating is kept so the ledger can be replayed even if the
	// configured initial rating changes.
	InitialRating float64 `json:"-"`
	Standing

	// Tombstones, photos are never removed as votes reference them.
	DeletedAt null.Time `json:"deleted_at"`
	BannedAt  null.Time `json:"banned_at"`
}

func NewPhoto(ownerID string, initialRating float64) Photo {
	return Photo{
		ID:            util.NewUUIDAsBlob(),
		OwnerID:       ownerID,
		CreatedAt:     util.NewTimeAsUnixMilli(time.Now()),
		InitialRating: initialRating,
		Standing:      NewStanding(initialRating),
	}
}

// Active returns true if the photo can be paired, voted on, and ranked.
func (p Photo) Active() bool {
	return !p.DeletedAt.Valid && !p.BannedAt.Valid
}

func (p Photo) MarshalJSON() ([]byte, error) {
	type photo Photo // drop methods to avoid recursion

	return json.Marshal(struct {
		photo
		Active     bool `json:"active"`
		TotalVotes int  `json:"total_votes"`
	}{photo(p), p.Active(), p.TotalVotes()})
}

// activePhoto is the condition for a Photo row to be active.
func activePhoto() squirrel.Sqlizer {
	return squirrel.Eq{"DeletedAt": nil, "BannedAt": nil}
}

func (p *Photo) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("Photo").SetMap(squirrel.Eq{
		"ID":            p.ID,
		"OwnerID":       p.OwnerID,
		"CreatedAt":     p.CreatedAt,
		"InitialRating": p.InitialRating,
		"Rating":        p.Rating,
		"Deviation":     p.Deviation,
		"Volatility":    p.Volatility,
		"Wins":          p.Wins,
		"Losses":        p.Losses,
		"DeletedAt":     p.DeletedAt,
		"BannedAt":      p.BannedAt,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
		return err
	}

	return nil
}

// updateStanding writes the rating and counters of the photo, nothing else.
func (p *Photo) updateStanding(tx *sqlx.Tx) error {
	query, args, err := squirrel.Update("Photo").SetMap(squirrel.Eq{
		"Rating":     p.Rating,
		"Deviation":  p.Deviation,
		"Volatility": p.Volatility,
		"Wins":       p.Wins,
		"Losses":     p.Losses,
	}).Where("Photo.ID = ?", p.ID).ToSql()
	if err != nil {
		return err
	}

	res, err := tx.Exec(tx.Rebind(query), args...)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return fmt.Errorf("expected to update 1 Photo, updated %d", n)
	}

	return nil
}

func getPhotoByID(tx *sqlx.Tx, id util.UUIDAsBlob) (Photo, error) {
	var ret Photo
	query := tx.Rebind(`SELECT * FROM Photo WHERE Photo.ID = ? LIMIT 1`)
	if err := tx.Get(&ret, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Photo{}, ErrNotFound.withMessage(fmt.Sprintf("photo %s not found", id))
		}
		return Photo{}, err
	}

	return ret, nil
}

// getPhotosForUpdate fetches the given photos, in ID order, locking their rows
// until the end of the transaction where the database supports it.
func (b *Back) getPhotosForUpdate(tx *sqlx.Tx, ids ...util.UUIDAsBlob) (map[util.UUIDAsBlob]Photo, error) {
	query, args, err := sqlx.In(`SELECT * FROM Photo WHERE ID IN(?) ORDER BY ID ASC `+b.lockSuffix, ids)
	if err != nil {
		return nil, err
	}

	var photos []Photo
	if err := tx.Select(&photos, tx.Rebind(query), args...); err != nil {
		return nil, err
	}

	ret := make(map[util.UUIDAsBlob]Photo, len(photos))
	for k := range photos {
		ret[photos[k].ID] = photos[k]
	}

	for _, id := range ids {
		if _, ok := ret[id]; !ok {
			return nil, ErrNotFound.withMessage(fmt.Sprintf("photo %s not found", id))
		}
	}

	return ret, nil
}

// CreatePhoto registers a newly uploaded photo of the given owner. Photos of
// a banned owner are created inactive.
func (b *Back) CreatePhoto(ctx context.Context, ownerID string) (Photo, error) {
	if ownerID == "" {
		return Photo{}, ErrInvalidArgument.withMessage("empty owner ID")
	}

	photo := NewPhoto(ownerID, b.config.InitialRating)
	if err := b.retryTransaction(ctx, "creation of a photo", func(tx *sqlx.Tx) error {
		ban, err := getOwnerBan(tx, ownerID)
		if err != nil {
			return err
		}
		if ban.Valid {
			photo.BannedAt = ban
		}

		return photo.insert(tx)
	}); err != nil {
		return Photo{}, err
	}

	log.Printf("info: created Photo %s for owner %s", photo.ID, ownerID)

	return photo, nil
}

func (b *Back) GetPhoto(ctx context.Context, id util.UUIDAsBlob) (photo Photo, _ error) {
	return photo, b.readTransaction(ctx, func(tx *sqlx.Tx) (err error) {
		photo, err = getPhotoByID(tx, id)
		return err
	})
}

// GetOwnerPhotos returns every photo of an owner, inactive ones included,
// newest first.
func (b *Back) GetOwnerPhotos(ctx context.Context, ownerID string) ([]Photo, error) {
	ret := []Photo{}
	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT * FROM Photo WHERE OwnerID = ? ORDER BY CreatedAt DESC, ID ASC`)
		return tx.Select(&ret, query, ownerID)
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

// DeletePhoto tombstones a photo, it stays referenced by the votes cast on it
// but won't be paired, voted on, or ranked again. Deleting a deleted photo is
// a no-op.
func (b *Back) DeletePhoto(ctx context.Context, id util.UUIDAsBlob) error {
	return b.retryTransaction(ctx, "deletion of "+id.String(), func(tx *sqlx.Tx) error {
		photo, err := getPhotoByID(tx, id)
		if err != nil {
			return err
		}

		if photo.DeletedAt.Valid {
			return nil
		}

		query, args, err := squirrel.Update("Photo").
			Set("DeletedAt", null.TimeFrom(time.Now())).
			Where("Photo.ID = ?", id).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
			return err
		}

		log.Printf("info: deleted Photo %s", id)
		return nil
	})
}
