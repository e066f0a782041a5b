package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestor/internal/events"
	"ingestor/internal/jobs"
)

func TestHubAssignsSequencesAndFiltersByJob(t *testing.T) {
	hub := events.NewHub(16, nil)
	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, events.Event{JobID: "a", Type: events.TypeProgress, Percentage: 1}))
	require.NoError(t, hub.Publish(ctx, events.Event{JobID: "b", Type: events.TypeProgress, Percentage: 5}))
	require.NoError(t, hub.Publish(ctx, events.Event{JobID: "a", Type: events.TypeCompleted, Percentage: 100}))

	got, next, err := hub.Fetch(ctx, "a", 0, 0, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(1), got[0].Sequence)
	require.Equal(t, uint64(3), got[1].Sequence)
	require.Equal(t, uint64(3), next)
	require.False(t, got[0].Timestamp.IsZero())

	all, _, err := hub.Fetch(ctx, "", 1, 0, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	hub := events.NewHub(2, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(ctx, events.Event{JobID: "a", Percentage: i}))
	}
	require.Equal(t, uint64(4), hub.FirstSequence())
	tail, next := hub.Tail("a", 10)
	require.Len(t, tail, 2)
	require.Equal(t, 3, tail[0].Percentage)
	require.Equal(t, 4, tail[1].Percentage)
	require.Equal(t, uint64(5), next)
}

func TestHubFetchWaitsForMatchingEvent(t *testing.T) {
	hub := events.NewHub(16, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = hub.Publish(context.Background(), events.Event{JobID: "other"})
		time.Sleep(20 * time.Millisecond)
		_ = hub.Publish(context.Background(), events.Event{JobID: "mine", Type: events.TypeCompleted})
	}()

	got, next, err := hub.Fetch(ctx, "mine", 0, 0, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "mine", got[0].JobID)
	require.Equal(t, uint64(2), next)
}

func TestHubFetchReturnsOnContextEnd(t *testing.T) {
	hub := events.NewHub(16, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	got, _, err := hub.Fetch(ctx, "idle", 0, 0, true)
	require.Empty(t, got)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHubForwardsToSinksDespiteFailures(t *testing.T) {
	hub := events.NewHub(4, nil)
	var mu sync.Mutex
	var seen []uint64
	hub.AddSink(events.SinkFunc(func(context.Context, events.Event) error {
		return errors.New("broker down")
	}))
	hub.AddSink(events.SinkFunc(func(_ context.Context, evt events.Event) error {
		mu.Lock()
		seen = append(seen, evt.Sequence)
		mu.Unlock()
		return nil
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), events.Event{JobID: "a"}))
	}
	require.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestFromJobAttachesStatsOnTerminalOnly(t *testing.T) {
	job := jobs.Job{
		ID:          "j",
		Status:      jobs.StatusCompletedWithWarnings,
		Percentage:  100,
		Stats:       jobs.Stats{ChunksStored: 4},
		FailedItems: []jobs.FailedItem{{Name: "b.md", Reason: "boom"}},
	}
	evt := events.FromJob(events.TypeCompleted, job, "done")
	require.NotNil(t, evt.Stats)
	require.Equal(t, 4, evt.Stats.ChunksStored)
	require.Len(t, evt.FailedItems, 1)

	progress := events.FromJob(events.TypeProgress, job, "working")
	require.Nil(t, progress.Stats)
	require.Nil(t, progress.FailedItems)
}
