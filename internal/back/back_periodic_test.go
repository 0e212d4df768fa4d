package back // nolint:testpackage

import (
	"context"
	"testing"
	"time"

	"facerank/internal/config"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportsDrift(t *testing.T) {
	back := createTestBack(t, func(c *config.Config) {
		c.VerifyInterval = config.Duration(10 * time.Millisecond)
	})
	ctx := context.Background()
	photos := createPhotos(t, back, 2)

	_, err := back.RecordVote(ctx, "voter", photos[0].ID, photos[1].ID)
	require.NoError(t, err)
	exec(t, back, `UPDATE Photo SET Wins = Wins + 1 WHERE Photo.ID = ?`, photos[0].ID)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		back.Run(done)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ratingDriftPhotos) == 1
	}, 5*time.Second, 10*time.Millisecond)

	close(done)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after done was closed")
	}
}

func TestRunDisabled(t *testing.T) {
	back := createTestBack(t, func(c *config.Config) {
		c.VerifyInterval = 0
	})

	returned := make(chan struct{})
	go func() {
		back.Run(make(chan struct{}))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		assert.Fail(t, "Run kept running with verification disabled")
	}
}
