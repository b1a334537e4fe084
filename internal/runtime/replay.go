package runtime

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultReplayWindow is how many recent transaction ids a Runtime
// remembers for duplicate detection.
const DefaultReplayWindow = 100_000

// replaySet remembers the most recent reserved transaction ids. It is kept
// in memory only: a restarted runtime accepts ids it committed before, and
// so does a long-running one once an id has been evicted. Signed
// transactions carry a client nonce, so resubmitting after either event
// needs the exact same signed bytes.
type replaySet struct {
	ids *lru.Cache
}

func newReplaySet(limit int) *replaySet {
	if limit <= 0 {
		limit = DefaultReplayWindow
	}
	cache, _ := lru.New(limit)
	return &replaySet{ids: cache}
}

// reserve records id. A duplicate lookup does not refresh it, so the oldest
// reservation is evicted first once the window is full.
func (s *replaySet) reserve(id string) error {
	if found, _ := s.ids.ContainsOrAdd(id, struct{}{}); found {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, id)
	}
	return nil
}

// release forgets id so a failed transaction can be retried.
func (s *replaySet) release(id string) {
	s.ids.Remove(id)
}

func (s *replaySet) len() int { return s.ids.Len() }
