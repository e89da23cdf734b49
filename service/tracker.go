package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voting-gateway/models"
)

// Submission is one in-flight vote on its way through the two writes. It is
// created when the voter confirms a ballot and removed once both writes have
// resolved. Abandonment between the two writes simply leaves the store record
// standing; that residual state is expected and equivalent to a store-only
// outcome.
type Submission struct {
	ID          string
	Key         models.CorrelationKey
	ElectionID  string
	Fingerprint string
	StartedAt   time.Time
}

// Tracker keeps the set of in-flight submissions. It exists for
// observability; no protocol decision depends on it.
type Tracker struct {
	mu       sync.RWMutex
	inflight map[string]Submission
}

func NewTracker() *Tracker {
	return &Tracker{
		inflight: make(map[string]Submission),
	}
}

// Begin records a new in-flight submission and returns it.
func (t *Tracker) Begin(key models.CorrelationKey, electionID, fingerprint string) Submission {
	s := Submission{
		ID:          uuid.New().String(),
		Key:         key,
		ElectionID:  electionID,
		Fingerprint: fingerprint,
		StartedAt:   time.Now(),
	}

	t.mu.Lock()
	t.inflight[s.ID] = s
	t.mu.Unlock()

	return s
}

// Resolve removes a submission once its outcome is known.
func (t *Tracker) Resolve(id string) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

// InflightCount returns the number of submissions still between writes.
func (t *Tracker) InflightCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.inflight)
}
