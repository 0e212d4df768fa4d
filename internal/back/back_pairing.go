package back

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// SelectPair returns two distinct active photos drawn uniformly at random.
// When excludeOwnerID is not empty photos of that owner are never returned,
// this is how voters are kept from being shown their own photos.
func (b *Back) SelectPair(ctx context.Context, excludeOwnerID string) (Photo, Photo, error) {
	var a, c Photo

	if err := b.readTransaction(ctx, func(tx *sqlx.Tx) error {
		cond := eligiblePhoto(excludeOwnerID)

		n, err := countPhotos(tx, cond)
		if err != nil {
			return err
		}

		i, j, ok := pickTwo(b.randomIndex, n)
		if !ok {
			return ErrUnavailable
		}

		if a, err = getPhotoAt(tx, cond, i); err != nil {
			return err
		}
		c, err = getPhotoAt(tx, cond, j)
		return err
	}); err != nil {
		return Photo{}, Photo{}, err
	}

	pairsServedTotal.Inc()

	return a, c, nil
}

// pickTwo returns two distinct indexes uniformly drawn from [0,n). The second
// index is drawn from the n-1 remaining ones and shifted past the first so no
// rejection loop is needed.
func pickTwo(randomIndex func(int) int, n int) (int, int, bool) {
	if n < 2 {
		return 0, 0, false
	}

	i := randomIndex(n)
	j := randomIndex(n - 1)
	if j >= i {
		j++
	}

	return i, j, true
}

func eligiblePhoto(excludeOwnerID string) squirrel.Sqlizer {
	if excludeOwnerID == "" {
		return activePhoto()
	}

	return squirrel.And{activePhoto(), squirrel.NotEq{"OwnerID": excludeOwnerID}}
}

func countPhotos(tx *sqlx.Tx, cond squirrel.Sqlizer) (int, error) {
	query, args, err := squirrel.Select("COUNT(*)").From("Photo").Where(cond).ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := tx.Get(&n, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("unable to count Photo: %w", err)
	}

	return n, nil
}

// getPhotoAt returns the photo at the given position of the ID ordered set of
// photos matching cond.
func getPhotoAt(tx *sqlx.Tx, cond squirrel.Sqlizer, pos int) (Photo, error) {
	query, args, err := squirrel.Select("*").From("Photo").
		Where(cond).
		OrderBy("ID ASC").
		Limit(1).
		Offset(uint64(pos)).
		ToSql()
	if err != nil {
		return Photo{}, err
	}

	var ret Photo
	if err := tx.Get(&ret, tx.Rebind(query), args...); err != nil {
		return Photo{}, fmt.Errorf("unable to fetch Photo at position %d: %w", pos, err)
	}

	return ret, nil
}
