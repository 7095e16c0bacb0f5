package purchase

import (
	"context"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// maxRetriesPerEdge and retryBaseDelay set the per-edge retry policy: a
// network or HTTP 5xx failure is retried up to maxRetriesPerEdge times
// (three attempts in all) with exponential backoff, base × 2^i.
const (
	maxRetriesPerEdge = 2
	retryBaseDelay    = 500 * time.Millisecond
)

// withEdgeRetry calls op up to maxRetriesPerEdge+1 times, retrying only
// while the returned error is a retryable protocol.EngineError
// (PeerUnreachable), sleeping base*2^i between attempts.
func withEdgeRetry(ctx context.Context, op func() error) error {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt <= maxRetriesPerEdge; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		err := op()
		if err == nil {
			return nil
		}
		if !protocol.IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
