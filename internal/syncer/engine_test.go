package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewlog/crewlog/internal/domain/syncqueue"
	"github.com/crewlog/crewlog/internal/netmon"
)

// memQueue is an in-memory syncqueue.Repository. Items iterate in map
// order, so tests exercise the engine's own FIFO sort.
type memQueue struct {
	mu    sync.Mutex
	items map[string]*syncqueue.Item
}

func newMemQueue() *memQueue {
	return &memQueue{items: make(map[string]*syncqueue.Item)}
}

func (q *memQueue) Enqueue(_ context.Context, item *syncqueue.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *item
	q.items[item.ID] = &copied
	return nil
}

func (q *memQueue) PendingForStore(_ context.Context, store string) ([]syncqueue.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var pending []syncqueue.Item
	for _, item := range q.items {
		if item.Store == store && item.SyncedAt == nil {
			pending = append(pending, *item)
		}
	}
	return pending, nil
}

func (q *memQueue) MarkSynced(_ context.Context, id string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return errors.New("not found")
	}
	item.SyncedAt = &at
	return nil
}

func (q *memQueue) MarkFailed(_ context.Context, id, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return errors.New("not found")
	}
	item.RetryCount++
	item.LastError = &message
	return nil
}

func (q *memQueue) ClearSynced(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var removed int64
	for id, item := range q.items {
		if item.SyncedAt != nil {
			delete(q.items, id)
			removed++
		}
	}
	return removed, nil
}

func (q *memQueue) CountPending(_ context.Context, store string, maxRetries int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, item := range q.items {
		if item.Store == store && item.SyncedAt == nil && item.RetryCount < maxRetries {
			count++
		}
	}
	return count, nil
}

func (q *memQueue) CountFailed(_ context.Context, store string, maxRetries int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, item := range q.items {
		if item.Store == store && item.SyncedAt == nil && item.RetryCount >= maxRetries {
			count++
		}
	}
	return count, nil
}

func (q *memQueue) get(id string) syncqueue.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.items[id]
}

// scriptedDeliverer records delivery order and fails entities on demand.
type scriptedDeliverer struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]error
	gate      chan struct{}
}

func (d *scriptedDeliverer) Deliver(_ context.Context, item *syncqueue.Item) error {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, item.EntityID)
	if err, ok := d.failFor[item.EntityID]; ok {
		return err
	}
	return nil
}

func (d *scriptedDeliverer) order() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.delivered...)
}

func newTestEngine(queue syncqueue.Repository, deliver Deliverer, monitor *netmon.Monitor, opts Options) *Engine {
	e := New(queue, deliver, monitor, nil, opts)
	e.sleep = func(time.Duration) {}
	return e
}

func enqueueAt(t *testing.T, q *memQueue, id, entityID string, at time.Time) {
	t.Helper()
	err := q.Enqueue(context.Background(), &syncqueue.Item{
		ID:         id,
		Store:      syncqueue.StoreActivityEvents,
		EntityID:   entityID,
		Data:       "{}",
		EnqueuedAt: at,
	})
	require.NoError(t, err)
}

func TestSyncPending_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	// Inserted out of enqueue-time order on purpose.
	enqueueAt(t, q, "i3", "e3", base.Add(2*time.Second))
	enqueueAt(t, q, "i1", "e1", base)
	enqueueAt(t, q, "i2", "e2", base.Add(time.Second))

	deliverer := &scriptedDeliverer{}
	e := newTestEngine(q, deliverer, netmon.New(), Options{})

	res := e.SyncPending(ctx)
	require.Equal(t, 3, res.Processed)
	require.Equal(t, 3, res.Succeeded)
	require.Equal(t, []string{"e1", "e2", "e3"}, deliverer.order())
}

func TestSyncPending_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	base := time.Now().UTC()

	enqueueAt(t, q, "a", "ea", base)
	enqueueAt(t, q, "b", "eb", base.Add(time.Second))
	enqueueAt(t, q, "c", "ec", base.Add(2*time.Second))

	deliverer := &scriptedDeliverer{failFor: map[string]error{"eb": errors.New("connection reset")}}
	e := newTestEngine(q, deliverer, netmon.New(), Options{})

	res := e.SyncPending(ctx)
	require.Equal(t, 3, res.Processed)
	require.Equal(t, 2, res.Succeeded)
	require.Equal(t, 1, res.Failed)

	require.NotNil(t, q.get("a").SyncedAt)
	require.NotNil(t, q.get("c").SyncedAt)

	b := q.get("b")
	require.Nil(t, b.SyncedAt)
	require.Equal(t, 1, b.RetryCount)
	require.NotNil(t, b.LastError)
	require.Equal(t, "connection reset", *b.LastError)
}

func TestSyncPending_SkipsExhaustedItems(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	msg := "server error"

	require.NoError(t, q.Enqueue(ctx, &syncqueue.Item{
		ID:         "stuck",
		Store:      syncqueue.StoreActivityEvents,
		EntityID:   "es",
		Data:       "{}",
		EnqueuedAt: time.Now().UTC(),
		RetryCount: 3,
		LastError:  &msg,
	}))

	deliverer := &scriptedDeliverer{}
	e := newTestEngine(q, deliverer, netmon.New(), Options{})

	res := e.SyncPending(ctx)
	require.Zero(t, res.Processed)
	require.Empty(t, deliverer.order())

	pending, err := e.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)

	failed, err := e.FailedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, failed)
}

func TestSyncPending_RetryCeilingReached(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	enqueueAt(t, q, "i1", "e1", time.Now().UTC())

	deliverer := &scriptedDeliverer{failFor: map[string]error{"e1": errors.New("rejected")}}
	e := newTestEngine(q, deliverer, netmon.New(), Options{MaxRetries: 3})

	for i := 0; i < 3; i++ {
		res := e.SyncPending(ctx)
		require.Equal(t, 1, res.Failed, "pass %d", i)
	}

	// Fourth pass never attempts the exhausted item.
	res := e.SyncPending(ctx)
	require.Zero(t, res.Processed)
	require.Len(t, deliverer.order(), 3)

	failed, err := e.FailedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, failed)
}

func TestSyncPending_OfflineNoop(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	enqueueAt(t, q, "i1", "e1", time.Now().UTC())

	monitor := netmon.New()
	monitor.SetOnline(false)

	deliverer := &scriptedDeliverer{}
	e := newTestEngine(q, deliverer, monitor, Options{})

	res := e.SyncPending(ctx)
	require.Zero(t, res.Processed)
	require.Empty(t, deliverer.order())
}

func TestSyncPending_NoConcurrentPasses(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	enqueueAt(t, q, "i1", "e1", time.Now().UTC())

	gate := make(chan struct{})
	deliverer := &scriptedDeliverer{gate: gate}
	e := newTestEngine(q, deliverer, netmon.New(), Options{})

	done := make(chan Result, 1)
	go func() { done <- e.SyncPending(ctx) }()

	require.Eventually(t, e.IsSyncing, time.Second, time.Millisecond)

	second := e.SyncPending(ctx)
	require.Zero(t, second.Processed, "pass requested mid-sync is rejected, not queued")

	close(gate)
	first := <-done
	require.Equal(t, 1, first.Succeeded)
}

func TestRetryFailed_TargetsErroredItemsOnly(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	msg := "timeout"

	require.NoError(t, q.Enqueue(ctx, &syncqueue.Item{
		ID: "errored", Store: syncqueue.StoreActivityEvents, EntityID: "ee",
		Data: "{}", EnqueuedAt: time.Now().UTC(), RetryCount: 1, LastError: &msg,
	}))
	enqueueAt(t, q, "fresh", "ef", time.Now().UTC())

	deliverer := &scriptedDeliverer{}
	e := newTestEngine(q, deliverer, netmon.New(), Options{})

	res := e.RetryFailed(ctx)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, []string{"ee"}, deliverer.order(), "fresh items are left to SyncPending")
	require.NotNil(t, q.get("errored").SyncedAt)
	require.Nil(t, q.get("fresh").SyncedAt)
}

func TestRetryFailed_BackoffSchedule(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	msg := "timeout"

	items := []struct {
		id      string
		retries int
	}{
		{"r1", 1},
		{"r2", 2},
		{"r3", 3},
	}
	base := time.Now().UTC()
	for i, it := range items {
		require.NoError(t, q.Enqueue(ctx, &syncqueue.Item{
			ID: it.id, Store: syncqueue.StoreActivityEvents, EntityID: it.id,
			Data: "{}", EnqueuedAt: base.Add(time.Duration(i) * time.Second),
			RetryCount: it.retries, LastError: &msg,
		}))
	}

	backoff := []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
	e := New(q, &scriptedDeliverer{}, netmon.New(), nil, Options{MaxRetries: 4, Backoff: backoff})

	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	res := e.RetryFailed(ctx)
	require.Equal(t, 3, res.Processed)
	// retry_count 1 -> Backoff[0], 2 -> Backoff[1], 3 -> Backoff[2].
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, slept)
}

func TestRetryFailed_ClampsBackoffIndex(t *testing.T) {
	e := New(newMemQueue(), &scriptedDeliverer{}, netmon.New(), nil, Options{
		MaxRetries: 10,
		Backoff:    []time.Duration{time.Second, 5 * time.Second},
	})

	require.Equal(t, time.Second, e.backoffFor(0))
	require.Equal(t, time.Second, e.backoffFor(1))
	require.Equal(t, 5*time.Second, e.backoffFor(2))
	require.Equal(t, 5*time.Second, e.backoffFor(7))
}

func TestListeners_OrderAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	enqueueAt(t, q, "i1", "e1", time.Now().UTC())

	e := newTestEngine(q, &scriptedDeliverer{}, netmon.New(), Options{})

	var calls []string
	e.OnSyncComplete(func(res Result) {
		calls = append(calls, fmt.Sprintf("complete-a:%d", res.Succeeded))
	})
	unsub := e.OnSyncComplete(func(Result) { calls = append(calls, "complete-b") })
	e.OnPendingCountChange(func(pending int) {
		calls = append(calls, fmt.Sprintf("count:%d", pending))
	})

	e.SyncPending(ctx)
	require.Equal(t, []string{"complete-a:1", "complete-b", "count:0"}, calls)

	calls = nil
	unsub()
	e.SyncPending(ctx)
	require.Equal(t, []string{"complete-a:0", "count:0"}, calls)
}

func TestOfflineToOnlineRecovery(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	monitor := netmon.New()
	monitor.SetOnline(false)

	deliverer := &scriptedDeliverer{}
	e := newTestEngine(q, deliverer, monitor, Options{})
	monitor.OnRestore(e.OnNetworkRestore)

	// Three writes recorded while offline.
	enqueueAt(t, q, "i1", "e1", base)
	enqueueAt(t, q, "i2", "e2", base.Add(time.Second))
	enqueueAt(t, q, "i3", "e3", base.Add(2*time.Second))

	pending, err := e.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, pending)

	monitor.SetOnline(true)

	require.Equal(t, []string{"e1", "e2", "e3"}, deliverer.order())
	pending, err = e.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}
