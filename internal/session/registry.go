package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/visatk/pdf-core/internal/domain"
	"github.com/visatk/pdf-core/internal/metrics"
)

// Registry maps session ids to coordinators. A given id resolves to the
// same coordinator instance for the whole process lifetime; coordinators are
// never evicted, which is what makes every per-session operation
// single-writer. Referencing an id from a previous process silently creates
// fresh empty state - the stored document bytes survive in the blob store,
// unsynced annotations do not.
type Registry struct {
	mu           sync.Mutex
	coordinators map[uuid.UUID]*Coordinator

	store      domain.BlobStore
	summarizer Summarizer
	clock      clockwork.Clock
}

func NewRegistry(store domain.BlobStore, summarizer Summarizer, clock clockwork.Clock) *Registry {
	return &Registry{
		coordinators: make(map[uuid.UUID]*Coordinator),
		store:        store,
		summarizer:   summarizer,
		clock:        clock,
	}
}

// Resolve returns the coordinator for idParam, creating it on first
// reference. An empty idParam mints a fresh session id. A malformed id
// fails with domain.ErrInvalidSessionID.
func (r *Registry) Resolve(idParam string) (*Coordinator, error) {
	var id uuid.UUID
	if idParam == "" {
		id = uuid.New()
	} else {
		parsed, err := uuid.Parse(idParam)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, idParam)
		}
		id = parsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if co, exists := r.coordinators[id]; exists {
		return co, nil
	}

	co := NewCoordinator(id, r.store, r.summarizer, r.clock)
	r.coordinators[id] = co
	metrics.SessionsActive.Inc()
	return co, nil
}

// Shutdown closes every coordinator, waiting for their background work.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	coordinators := make([]*Coordinator, 0, len(r.coordinators))
	for _, co := range r.coordinators {
		coordinators = append(coordinators, co)
	}
	r.mu.Unlock()

	for _, co := range coordinators {
		co.Close()
	}
}
