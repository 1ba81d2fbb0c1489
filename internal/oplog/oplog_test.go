package oplog_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalia/internal/oplog"
)

func TestPublisherStampsAndAppends(t *testing.T) {
	store := oplog.NewMemoryStore()
	pub := oplog.NewPublisher(store)

	err := pub.Emit(context.Background(), oplog.Event{
		OperationID: uuid.New(),
		Kind:        "create_listing",
		Target:      "listing:new",
		Status:      "submitted",
	})
	require.NoError(t, err)

	events, err := pub.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestListByTarget(t *testing.T) {
	store := oplog.NewMemoryStore()
	pub := oplog.NewPublisher(store)
	ctx := context.Background()

	require.NoError(t, pub.Emit(ctx, oplog.Event{Target: "listing:1", Status: "submitted"}))
	require.NoError(t, pub.Emit(ctx, oplog.Event{Target: "listing:2", Status: "submitted"}))
	require.NoError(t, pub.Emit(ctx, oplog.Event{Target: "listing:1", Status: "confirmed"}))

	events, err := pub.ListByTarget(ctx, "listing:1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "submitted", events[0].Status)
	assert.Equal(t, "confirmed", events[1].Status)
}

func TestListRecentReturnsTail(t *testing.T) {
	store := oplog.NewMemoryStore()
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, store.Append(ctx, oplog.Event{Status: string(rune('a' + i))}))
	}

	events, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "d", events[0].Status)
	assert.Equal(t, "e", events[1].Status)
}

func TestWorkerDrainsInbox(t *testing.T) {
	store := oplog.NewMemoryStore()
	inbox := make(chan oplog.Event, 8)
	worker := oplog.NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	pub := oplog.NewChannelPublisher(inbox)
	require.NoError(t, pub.Emit(ctx, oplog.Event{Target: "listing:1", Status: "pending"}))

	assert.Eventually(t, func() bool {
		events, err := store.ListByTarget(context.Background(), "listing:1")
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
