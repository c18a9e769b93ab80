package favorites

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// hubFeed adapts the service's hub into a Feed: it registers an in-process
// subscriber for the user and primes it with the stored snapshot.
type hubFeed struct {
	svc Service
}

// NewHubFeed returns a Feed backed by the service's snapshot fan-out.
func NewHubFeed(svc Service) Feed {
	return hubFeed{svc: svc}
}

// Subscribe loads the current snapshot, attaches a hub subscriber and
// delivers the initial state. The cancel function detaches the subscriber;
// after it returns no further deliveries happen.
func (f hubFeed) Subscribe(userID string, deliver func(ids []string)) (func(), error) {
	ids, err := f.svc.IDs(context.Background(), userID)
	if err != nil {
		return nil, err
	}

	sub := &funcSubscriber{deliver: deliver}
	f.svc.Hub().Register(userID, sub)
	deliver(ids)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.Close()
			f.svc.Hub().Unregister(userID, sub)
		})
	}
	return cancel, nil
}

// funcSubscriber bridges hub payloads to a snapshot callback.
type funcSubscriber struct {
	mu      sync.Mutex
	closed  bool
	deliver func(ids []string)
}

// Send decodes a snapshot payload and hands the ID set to the callback.
func (s *funcSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return io.EOF
	}
	deliver := s.deliver
	s.mu.Unlock()

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return err
	}
	deliver(snapshot.Favorites)
	return nil
}

// Close stops further deliveries.
func (s *funcSubscriber) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
