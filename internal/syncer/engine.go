// Package syncer drains the durable sync queue toward the remote store,
// applying per-item retry accounting with a bounded backoff schedule.
package syncer

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/crewlog/crewlog/internal/domain/syncqueue"
	"github.com/crewlog/crewlog/internal/netmon"
)

// Deliverer sends one queued item to the remote store. Delivery is
// expected to be idempotent on the remote side, keyed by the item's
// entity id.
type Deliverer interface {
	Deliver(ctx context.Context, item *syncqueue.Item) error
}

// ItemResult records the outcome of one delivery attempt.
type ItemResult struct {
	ItemID   string `json:"item_id"`
	EntityID string `json:"entity_id"`
	Synced   bool   `json:"synced"`
	Error    string `json:"error,omitempty"`
}

// Result is the aggregate outcome of one sync pass.
type Result struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items,omitempty"`
}

// Status is the surface backing a sync indicator: pending work is
// routine, failed items need operator awareness, never alarm.
type Status struct {
	PendingCount int  `json:"pending_count"`
	FailedCount  int  `json:"failed_count"`
	IsSyncing    bool `json:"is_syncing"`
	IsOnline     bool `json:"is_online"`
}

// Options configure the engine's retry behavior.
type Options struct {
	// Store is the logical queue collection this engine drains.
	Store string
	// MaxRetries is the delivery attempt ceiling per item.
	MaxRetries int
	// Backoff is indexed by the item's retry count minus one; retries
	// beyond the schedule reuse the last delay.
	Backoff []time.Duration
	// SettleDelay is waited after a network restore before syncing.
	SettleDelay time.Duration
}

// DefaultOptions returns the production retry schedule.
func DefaultOptions() Options {
	return Options{
		Store:       syncqueue.StoreActivityEvents,
		MaxRetries:  3,
		Backoff:     []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		SettleDelay: 2 * time.Second,
	}
}

type completeSub struct {
	id int
	fn func(Result)
}

type countSub struct {
	id int
	fn func(int)
}

// Engine owns sync for one device/session. Mutual exclusion between
// passes is cooperative: a pass requested while one is running returns
// an empty result immediately rather than queueing.
type Engine struct {
	queue   syncqueue.Repository
	deliver Deliverer
	monitor *netmon.Monitor
	logger  *slog.Logger
	opts    Options

	// sleep is swapped out in tests.
	sleep func(time.Duration)

	mu           sync.Mutex
	syncing      bool
	nextSub      int
	completeSubs []completeSub
	countSubs    []countSub
}

// New creates a sync engine. Zero option fields fall back to defaults.
func New(queue syncqueue.Repository, deliver Deliverer, monitor *netmon.Monitor, logger *slog.Logger, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Store == "" {
		opts.Store = def.Store
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if len(opts.Backoff) == 0 {
		opts.Backoff = def.Backoff
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = def.SettleDelay
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		queue:   queue,
		deliver: deliver,
		monitor: monitor,
		logger:  logger,
		opts:    opts,
		sleep:   time.Sleep,
	}
}

// SyncPending drains pending items in enqueue order. It is a no-op with
// an empty result when offline or when a pass is already running.
func (e *Engine) SyncPending(ctx context.Context) Result {
	if !e.monitor.Online() {
		return Result{}
	}
	if !e.begin() {
		return Result{}
	}
	defer e.end()

	items, err := e.snapshotPending(ctx)
	if err != nil {
		e.logger.Error("fetching pending items", "error", err)
		return Result{}
	}

	var res Result
	for i := range items {
		item := &items[i]
		if item.Exhausted(e.opts.MaxRetries) {
			continue
		}
		e.attempt(ctx, item, &res)
	}

	e.notify(ctx, res)
	return res
}

// RetryFailed re-attempts items that have a recorded delivery error and
// are still under the retry ceiling, waiting out the backoff schedule
// before each attempt. Fresh never-attempted items are left to
// SyncPending. No-op when offline.
func (e *Engine) RetryFailed(ctx context.Context) Result {
	if !e.monitor.Online() {
		return Result{}
	}
	if !e.begin() {
		return Result{}
	}
	defer e.end()

	items, err := e.snapshotPending(ctx)
	if err != nil {
		e.logger.Error("fetching failed items", "error", err)
		return Result{}
	}

	var res Result
	for i := range items {
		item := &items[i]
		if item.LastError == nil || item.Exhausted(e.opts.MaxRetries) {
			continue
		}
		e.sleep(e.backoffFor(item.RetryCount))
		e.attempt(ctx, item, &res)
	}

	e.notify(ctx, res)
	return res
}

// snapshotPending reads the queue once per pass and fixes FIFO order;
// items enqueued mid-pass wait for the next one.
func (e *Engine) snapshotPending(ctx context.Context) ([]syncqueue.Item, error) {
	items, err := e.queue.PendingForStore(ctx, e.opts.Store)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
	})
	return items, nil
}

func (e *Engine) attempt(ctx context.Context, item *syncqueue.Item, res *Result) {
	res.Processed++
	if err := e.deliver.Deliver(ctx, item); err != nil {
		if markErr := e.queue.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			e.logger.Error("recording delivery failure", "item", item.ID, "error", markErr)
		}
		res.Failed++
		res.Items = append(res.Items, ItemResult{ItemID: item.ID, EntityID: item.EntityID, Error: err.Error()})
		e.logger.Warn("delivery failed", "item", item.ID, "entity", item.EntityID, "retries", item.RetryCount+1, "error", err)
		return
	}
	if err := e.queue.MarkSynced(ctx, item.ID, time.Now().UTC()); err != nil {
		e.logger.Error("marking item synced", "item", item.ID, "error", err)
	}
	res.Succeeded++
	res.Items = append(res.Items, ItemResult{ItemID: item.ID, EntityID: item.EntityID, Synced: true})
}

// backoffFor returns the delay before retrying an item that has failed
// retryCount times: the first retry uses Backoff[0], later retries clamp
// to the last configured delay.
func (e *Engine) backoffFor(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(e.opts.Backoff) {
		idx = len(e.opts.Backoff) - 1
	}
	return e.opts.Backoff[idx]
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	e.syncing = true
	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

// IsSyncing reports whether a pass is currently running.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// PendingCount counts unsynced items still under the retry ceiling.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.queue.CountPending(ctx, e.opts.Store, e.opts.MaxRetries)
}

// FailedCount counts items that have exhausted their retries.
func (e *Engine) FailedCount(ctx context.Context) (int, error) {
	return e.queue.CountFailed(ctx, e.opts.Store, e.opts.MaxRetries)
}

// Status returns the current sync indicator snapshot.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	pending, err := e.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}
	failed, err := e.FailedCount(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		PendingCount: pending,
		FailedCount:  failed,
		IsSyncing:    e.IsSyncing(),
		IsOnline:     e.monitor.Online(),
	}, nil
}

// OnNetworkRestore waits a short settle delay, then runs exactly one
// sync pass. It blocks; callers on a notification path should invoke it
// from a goroutine.
func (e *Engine) OnNetworkRestore() {
	e.sleep(e.opts.SettleDelay)
	e.SyncPending(context.Background())
}

// OnSyncComplete registers a listener called synchronously after each
// sync pass, in registration order. It returns an unsubscribe function.
func (e *Engine) OnSyncComplete(fn func(Result)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.completeSubs = append(e.completeSubs, completeSub{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, sub := range e.completeSubs {
			if sub.id == id {
				e.completeSubs = append(e.completeSubs[:i], e.completeSubs[i+1:]...)
				return
			}
		}
	}
}

// OnPendingCountChange registers a listener for the post-pass pending
// count. It returns an unsubscribe function.
func (e *Engine) OnPendingCountChange(fn func(int)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.countSubs = append(e.countSubs, countSub{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, sub := range e.countSubs {
			if sub.id == id {
				e.countSubs = append(e.countSubs[:i], e.countSubs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) notify(ctx context.Context, res Result) {
	pending, err := e.PendingCount(ctx)
	if err != nil {
		e.logger.Error("counting pending items", "error", err)
		pending = -1
	}

	e.mu.Lock()
	complete := make([]func(Result), len(e.completeSubs))
	for i, sub := range e.completeSubs {
		complete[i] = sub.fn
	}
	counts := make([]func(int), len(e.countSubs))
	for i, sub := range e.countSubs {
		counts[i] = sub.fn
	}
	e.mu.Unlock()

	for _, fn := range complete {
		fn(res)
	}
	if pending >= 0 {
		for _, fn := range counts {
			fn(pending)
		}
	}
}
