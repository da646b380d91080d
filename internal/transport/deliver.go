package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crewlog/crewlog/internal/domain/syncqueue"
	"github.com/crewlog/crewlog/internal/netmon"
)

// HTTPDeliverer sends queued items to the central store over HTTP. The
// remote side deduplicates on the Idempotency-Key header, which carries
// the item's stable entity id.
type HTTPDeliverer struct {
	client  *http.Client
	baseURL string
	monitor *netmon.Monitor
}

// NewHTTPDeliverer creates a deliverer for the given remote base URL.
func NewHTTPDeliverer(baseURL string, monitor *netmon.Monitor) *HTTPDeliverer {
	return &HTTPDeliverer{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		monitor: monitor,
	}
}

// Deliver posts one item's payload snapshot to the remote store. A
// connection-level failure is reported to the network monitor; a remote
// rejection is not, since the server was reachable.
func (d *HTTPDeliverer) Deliver(ctx context.Context, item *syncqueue.Item) error {
	url := fmt.Sprintf("%s/ingest/%s", d.baseURL, item.Store)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(item.Data))
	if err != nil {
		return fmt.Errorf("building delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", item.EntityID)

	resp, err := d.client.Do(req)
	if err != nil {
		if d.monitor != nil {
			d.monitor.ReportIssue()
		}
		return fmt.Errorf("delivering item: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote store rejected item: status %d", resp.StatusCode)
	}
	return nil
}
