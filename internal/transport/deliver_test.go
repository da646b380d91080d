package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewlog/crewlog/internal/domain/syncqueue"
	"github.com/crewlog/crewlog/internal/netmon"
	"github.com/crewlog/crewlog/internal/transport"
)

func queueItem() *syncqueue.Item {
	return &syncqueue.Item{
		ID:         "q1",
		Store:      syncqueue.StoreActivityEvents,
		EntityID:   "ev1",
		Data:       `{"id":"ev1"}`,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestDeliver_Success(t *testing.T) {
	var gotPath, gotKey, gotBody string
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer remote.Close()

	monitor := netmon.New()
	d := transport.NewHTTPDeliverer(remote.URL+"/", monitor)

	require.NoError(t, d.Deliver(context.Background(), queueItem()))
	require.Equal(t, "/ingest/activity_events", gotPath)
	require.Equal(t, "ev1", gotKey)
	require.JSONEq(t, `{"id":"ev1"}`, gotBody)
	require.False(t, monitor.Snapshot().HasIssues)
}

func TestDeliver_RemoteRejection(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "schema mismatch", http.StatusUnprocessableEntity)
	}))
	defer remote.Close()

	monitor := netmon.New()
	d := transport.NewHTTPDeliverer(remote.URL, monitor)

	err := d.Deliver(context.Background(), queueItem())
	require.ErrorContains(t, err, "status 422")

	// The server answered, so this is not a connectivity problem.
	require.False(t, monitor.Snapshot().HasIssues)
}

func TestDeliver_ConnectionFailure(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	remote.Close()

	monitor := netmon.New()
	d := transport.NewHTTPDeliverer(remote.URL, monitor)

	err := d.Deliver(context.Background(), queueItem())
	require.Error(t, err)
	require.True(t, monitor.Snapshot().HasIssues)
}
