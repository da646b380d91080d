package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/crewlog/crewlog/internal/domain/event"
	"github.com/crewlog/crewlog/internal/domain/syncqueue"
)

// EventRepository is a mock for repository.EventRepository.
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Append(ctx context.Context, ev *event.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *EventRepository) List(ctx context.Context, opts event.ListOptions) ([]event.Event, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]event.Event); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventRepository) CountByType(ctx context.Context, projectID string, since time.Time) (map[string]int, error) {
	args := m.Called(ctx, projectID, since)
	if counts, ok := args.Get(0).(map[string]int); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventRepository) CountByCategory(ctx context.Context, projectID string, since time.Time) (map[string]int, error) {
	args := m.Called(ctx, projectID, since)
	if counts, ok := args.Get(0).(map[string]int); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}

// QueueRepository is a mock for repository.QueueRepository.
type QueueRepository struct {
	mock.Mock
}

func (m *QueueRepository) Enqueue(ctx context.Context, item *syncqueue.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *QueueRepository) PendingForStore(ctx context.Context, store string) ([]syncqueue.Item, error) {
	args := m.Called(ctx, store)
	if items, ok := args.Get(0).([]syncqueue.Item); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *QueueRepository) MarkFailed(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *QueueRepository) ClearSynced(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *QueueRepository) CountPending(ctx context.Context, store string, maxRetries int) (int, error) {
	args := m.Called(ctx, store, maxRetries)
	return args.Int(0), args.Error(1)
}

func (m *QueueRepository) CountFailed(ctx context.Context, store string, maxRetries int) (int, error) {
	args := m.Called(ctx, store, maxRetries)
	return args.Int(0), args.Error(1)
}

// Enqueuer is a mock for event.Enqueuer.
type Enqueuer struct {
	mock.Mock
}

func (m *Enqueuer) Enqueue(ctx context.Context, store, entityID string, data any) error {
	args := m.Called(ctx, store, entityID, data)
	return args.Error(0)
}
