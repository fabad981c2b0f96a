package errors

import (
	"errors"
	"fmt"
)

// IndexerError is returned when the blockchain indexer answered with a
// non-success status. It is transient from the pipeline's point of view:
// no state advances and the next tick retries.
type IndexerError struct {
	StatusCode int
	Body       string
}

func (e *IndexerError) Error() string {
	return fmt.Sprintf("indexer returned status %d: %s", e.StatusCode, e.Body)
}

// ErrChainUnavailable wraps transport-level failures (timeouts, refused
// connections) talking to the indexer. Treated exactly like an IndexerError.
var ErrChainUnavailable = errors.New("blockchain indexer unavailable")

// IsTransientChain reports whether err is a retryable chain-query failure.
func IsTransientChain(err error) bool {
	var ie *IndexerError
	return errors.As(err, &ie) || errors.Is(err, ErrChainUnavailable)
}
