package back

import (
	"context"
	"hash/fnv"
	"sort"

	"facerank/internal/util"
)

const photoLockStripes = 256

// photoLocks serializes in-process writers touching the same photos without
// blocking writers touching other photos. Each photo maps to a stripe, two
// photos can share a stripe which only costs some parallelism.
type photoLocks struct {
	stripes [photoLockStripes]chan struct{}
}

func newPhotoLocks() *photoLocks {
	l := &photoLocks{}
	for k := range l.stripes {
		l.stripes[k] = make(chan struct{}, 1)
	}

	return l
}

func stripeOf(id util.UUIDAsBlob) int {
	h := fnv.New32a()
	_, _ = h.Write(id[:])

	return int(h.Sum32() % photoLockStripes)
}

// lock acquires the stripes of all given photos, always in ascending stripe
// order so two callers can't deadlock. The returned func releases them.
func (l *photoLocks) lock(ctx context.Context, ids ...util.UUIDAsBlob) (func(), error) {
	stripes := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s := stripeOf(id)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		stripes = append(stripes, s)
	}
	sort.Ints(stripes)

	unlock := func(held []int) {
		for i := len(held) - 1; i >= 0; i-- {
			<-l.stripes[held[i]]
		}
	}

	for k, s := range stripes {
		select {
		case l.stripes[s] <- struct{}{}:
		case <-ctx.Done():
			unlock(stripes[:k])
			return nil, ctx.Err()
		}
	}

	return func() { unlock(stripes) }, nil
}
