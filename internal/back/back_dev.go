package back

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// LoadFixtures fills an empty database with photos from a few owners and
// casts random votes on them through the regular vote path.
func (b *Back) LoadFixtures(ctx context.Context, photos, votes int) error {
	owners := []string{"kaepora", "navi", "tatl", "tael", "midna"}

	for i := 0; i < photos; i++ {
		if _, err := b.CreatePhoto(ctx, owners[i%len(owners)]); err != nil {
			return fmt.Errorf("unable to create fixture Photo: %w", err)
		}
	}

	var cast, skipped int
	for i := 0; i < votes; i++ {
		voter := fmt.Sprintf("fixture-voter-%d", i%7)
		a, c, err := b.SelectPair(ctx, voter)
		if err != nil {
			return err
		}

		winner, loser := a, c
		if b.randomIndex(2) == 0 {
			winner, loser = c, a
		}

		if _, err := b.RecordVote(ctx, voter, winner.ID, loser.ID); err != nil {
			if errors.Is(err, ErrDuplicateVote) {
				skipped++
				continue
			}
			return err
		}
		cast++
	}

	log.Printf("info: loaded %d photos and %d votes (%d duplicates skipped)", photos, cast, skipped)

	return nil
}
