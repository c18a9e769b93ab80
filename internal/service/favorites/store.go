package favorites

import (
	"sort"
	"sync"

	"log/slog"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
)

// Feed delivers favorite-ID snapshots for a user. Subscribe must deliver the
// current snapshot promptly and then every subsequent change, in emission
// order, until the returned cancel function runs.
type Feed interface {
	Subscribe(userID string, deliver func(ids []string)) (cancel func(), err error)
}

// Store mirrors one session's favorite-ID set. It holds at most one live
// subscription; Observe releases the previous one before attaching the next,
// and a generation counter discards callbacks from replaced subscriptions so
// a slow old feed can never overwrite fresh state.
type Store struct {
	feed   Feed
	logger *slog.Logger

	mu       sync.Mutex
	ids      map[string]struct{}
	gen      int
	cancel   func()
	ready    chan struct{}
	settled  bool
	onChange func(ids []string)
}

// NewStore constructs a Store with an empty, not-yet-settled set.
func NewStore(feed Feed, logger *slog.Logger) *Store {
	return &Store{
		feed:   feed,
		logger: logger,
		ids:    make(map[string]struct{}),
		ready:  make(chan struct{}),
	}
}

// Observe switches the store to the given session (nil means signed out).
// Without a session the visible set becomes empty immediately and no
// subscription is created. With one, the set is replaced wholesale on every
// feed delivery. A subscription failure is a non-fatal warning: the last
// known set is kept and readiness still settles so callers do not hang.
func (s *Store) Observe(session *domain.Session) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	prevCancel := s.cancel
	s.cancel = nil
	s.ready = make(chan struct{})
	s.settled = false
	ready := s.ready
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	if session == nil || session.UserID == "" {
		s.mu.Lock()
		if gen == s.gen {
			s.ids = make(map[string]struct{})
			s.settleLocked(ready)
			notify := s.onChange
			s.mu.Unlock()
			if notify != nil {
				notify([]string{})
			}
			return
		}
		s.mu.Unlock()
		return
	}

	cancel, err := s.feed.Subscribe(session.UserID, func(ids []string) {
		s.apply(gen, ready, ids)
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("favorites subscription failed", "user_id", session.UserID, "error", err)
		}
		s.mu.Lock()
		if gen == s.gen {
			s.settleLocked(ready)
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		// Another Observe won the race while we were subscribing.
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
}

// apply replaces the visible set with the delivered snapshot.
func (s *Store) apply(gen int, ready chan struct{}, ids []string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.ids = next
	s.settleLocked(ready)
	notify := s.onChange
	snapshot := s.sortedLocked()
	s.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// IDs returns the visible favorite set, sorted for deterministic output.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Contains reports membership of a profile in the visible set.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Ready returns a channel closed once the current observation has settled,
// whether by a first delivery, an empty session, or a subscription error.
func (s *Store) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// OnChange registers a callback invoked with the sorted set after each
// replacement. Only one callback is held at a time.
func (s *Store) OnChange(fn func(ids []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Close releases the live subscription, if any.
func (s *Store) Close() {
	s.mu.Lock()
	s.gen++
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Store) settleLocked(ready chan struct{}) {
	if s.ready == ready && !s.settled {
		close(ready)
		s.settled = true
	}
}

func (s *Store) sortedLocked() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
