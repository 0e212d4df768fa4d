package back

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"facerank/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

// getOwnerBan returns when the owner was banned, or an invalid null.Time if
// they are not.
func getOwnerBan(tx *sqlx.Tx, ownerID string) (null.Time, error) {
	var ret null.Time
	query := tx.Rebind(`SELECT BannedAt FROM BannedOwner WHERE OwnerID = ? LIMIT 1`)
	if err := tx.Get(&ret, query, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return null.Time{}, nil
		}
		return null.Time{}, err
	}

	return ret, nil
}

// lockOwnerPhotos locks the rows of every photo of the owner in ID order, the
// order votes lock their two photos in, so both can't deadlock each other.
func (b *Back) lockOwnerPhotos(tx *sqlx.Tx, ownerID string) error {
	var ids []util.UUIDAsBlob
	query := tx.Rebind(`SELECT ID FROM Photo WHERE OwnerID = ? ORDER BY ID ASC ` + b.lockSuffix)
	if err := tx.Select(&ids, query, ownerID); err != nil {
		return fmt.Errorf("unable to lock photos of %s: %w", ownerID, err)
	}

	return nil
}

// BanOwner deactivates every photo of an owner, including the ones they
// upload while banned. It returns the number of photos that were deactivated.
func (b *Back) BanOwner(ctx context.Context, ownerID string) (affected int64, _ error) {
	if ownerID == "" {
		return 0, ErrInvalidArgument.withMessage("empty owner ID")
	}

	if err := b.retryTransaction(ctx, "ban of "+ownerID, func(tx *sqlx.Tx) error {
		if err := b.lockOwnerPhotos(tx, ownerID); err != nil {
			return err
		}

		ban, err := getOwnerBan(tx, ownerID)
		if err != nil {
			return err
		}

		if !ban.Valid {
			ban = null.TimeFrom(time.Now())
			query, args, err := squirrel.Insert("BannedOwner").SetMap(squirrel.Eq{
				"OwnerID":  ownerID,
				"BannedAt": ban,
			}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
				return err
			}
		}

		query, args, err := squirrel.Update("Photo").
			Set("BannedAt", ban).
			Where(squirrel.Eq{"OwnerID": ownerID, "BannedAt": nil}).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.Exec(tx.Rebind(query), args...)
		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()
		return err
	}); err != nil {
		return 0, err
	}

	log.Printf("info: banned owner %s, deactivated %d Photo", ownerID, affected)

	return affected, nil
}

// UnbanOwner reactivates the photos deactivated by BanOwner, photos that were
// deleted stay deleted.
func (b *Back) UnbanOwner(ctx context.Context, ownerID string) (affected int64, _ error) {
	if ownerID == "" {
		return 0, ErrInvalidArgument.withMessage("empty owner ID")
	}

	if err := b.retryTransaction(ctx, "unban of "+ownerID, func(tx *sqlx.Tx) error {
		if err := b.lockOwnerPhotos(tx, ownerID); err != nil {
			return err
		}

		if _, err := tx.Exec(tx.Rebind(`DELETE FROM BannedOwner WHERE OwnerID = ?`), ownerID); err != nil {
			return err
		}

		res, err := tx.Exec(
			tx.Rebind(`UPDATE Photo SET BannedAt = NULL WHERE OwnerID = ? AND BannedAt IS NOT NULL`),
			ownerID,
		)
		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()
		return err
	}); err != nil {
		return 0, err
	}

	log.Printf("info: unbanned owner %s, reactivated %d Photo", ownerID, affected)

	return affected, nil
}

// IsOwnerBanned returns true if BanOwner was called for the owner and
// UnbanOwner was not called since.
func (b *Back) IsOwnerBanned(ctx context.Context, ownerID string) (banned bool, _ error) {
	return banned, b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		ban, err := getOwnerBan(tx, ownerID)
		banned = ban.Valid
		return err
	})
}
