package back

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// nolint:gochecknoglobals
var (
	votesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facerank_votes_total",
		Help: "Votes committed to the ledger.",
	})

	voteRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerank_vote_rejections_total",
		Help: "Votes that were not committed, by reason code.",
	}, []string{"code"})

	commitRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facerank_commit_retries_total",
		Help: "Write transactions retried after a serialization failure.",
	})

	voteCommitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "facerank_vote_commit_seconds",
		Help:    "Time to validate and commit a vote, retries and lock waits included.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	pairsServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facerank_pairs_served_total",
		Help: "Pairs returned by the pair selector.",
	})
)

func observeVote(err error, d time.Duration) {
	voteCommitSeconds.Observe(d.Seconds())

	if err == nil {
		votesTotal.Inc()
		return
	}

	code := "internal"
	var e *Error
	if errors.As(err, &e) {
		code = e.Code
	}
	voteRejectionsTotal.WithLabelValues(code).Inc()
}
