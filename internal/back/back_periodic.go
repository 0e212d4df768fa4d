package back

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// nolint:gochecknoglobals
var (
	ratingDriftPhotos = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "facerank_rating_drift_photos",
		Help: "Photos whose stored rating differed from the replayed ledger at the last check.",
	})
	lastVerificationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "facerank_last_verification_timestamp_seconds",
		Help: "When the vote ledger was last replayed against the stored ratings.",
	})
)

// Run replays the vote ledger every VerifyInterval until done is closed.
func (b *Back) Run(done <-chan struct{}) {
	interval := b.config.VerifyInterval.Duration()
	if interval == 0 {
		log.Print("info: periodic ledger verification is disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Print("info: starting Back dæmon")
	for {
		select {
		case <-time.After(interval):
		case <-done:
			return
		}

		if err := b.runPeriodicTasks(ctx); err != nil {
			log.Printf("error: runPeriodicTasks: %s", err)
		}
	}
}

func (b *Back) runPeriodicTasks(ctx context.Context) error {
	drifts, err := b.VerifyRatings(ctx)
	if err != nil {
		return err
	}

	ratingDriftPhotos.Set(float64(len(drifts)))
	lastVerificationSeconds.SetToCurrentTime()
	if len(drifts) > 0 {
		log.Printf("warning: %d photos drifted from the vote ledger, run `facerank verify` for details", len(drifts))
	}

	return nil
}
