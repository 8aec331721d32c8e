package agenda

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

var (
	// ErrNotFound reports an instance ID absent from the agenda.
	ErrNotFound = errors.New("agenda: instance not found")
	// ErrCompleted reports a lifecycle change on an already completed instance.
	ErrCompleted = errors.New("agenda: instance already completed")
)

// Actuals is the feedback a user reports after doing an errand.
type Actuals struct {
	Duration time.Duration
	Travel   time.Duration
}

// Entry is one occurrence on the live agenda, together with the lifecycle
// events captured after planning. Wire representations live with the API
// and export layers.
type Entry struct {
	Instance    model.ErrandInstance
	RunID       string
	CommittedAt time.Time
	ConfirmedAt time.Time
	CompletedAt time.Time
	Actuals     Actuals
}

// Filter narrows List results. Zero fields match everything; Status matches
// the textual status name as exposed by the API.
type Filter struct {
	DefinitionID string
	Category     string
	Status       string
	From         time.Time
	To           time.Time
}

// Store keeps the instances that outlive a planning pass: the live agenda,
// user confirmations and completion feedback.
type Store interface {
	Commit(runID string, placed []model.ErrandInstance)
	Confirm(instanceID string) error
	Complete(instanceID string, actuals Actuals) error
	Get(instanceID string) (Entry, bool)
	List(Filter) []Entry
	ConfirmedIn(h model.Horizon) []model.ErrandInstance
}

// MemoryStore is the in-memory Store backing the service.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Entry{}, now: time.Now}
}

// Commit replaces the plannable part of the agenda with the latest pass.
// Confirmed and completed entries survive; placements from earlier passes
// are superseded wholesale.
func (s *MemoryStore) Commit(runID string, placed []model.ErrandInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	committed := s.now()
	for id, e := range s.data {
		if e.Instance.Status == model.StatusPending || e.Instance.Status == model.StatusPlaced {
			delete(s.data, id)
		}
	}
	for _, inst := range placed {
		if cur, ok := s.data[inst.ID]; ok {
			// The pass reaffirmed a confirmed or completed slot; keep its
			// lifecycle, only the owning run changes.
			cur.RunID = runID
			s.data[inst.ID] = cur
			continue
		}
		if inst.Status != model.StatusPlaced && inst.Status != model.StatusConfirmed {
			continue
		}
		s.data[inst.ID] = Entry{Instance: inst, RunID: runID, CommittedAt: committed}
	}
}

// Confirm pins an instance: later passes must plan around it. Confirming
// twice is a no-op; a completed instance cannot be confirmed.
func (s *MemoryStore) Confirm(instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}
	switch e.Instance.Status {
	case model.StatusCompleted:
		return fmt.Errorf("%w: %s", ErrCompleted, instanceID)
	case model.StatusConfirmed:
		return nil
	}
	e.Instance.Status = model.StatusConfirmed
	e.ConfirmedAt = s.now()
	s.data[instanceID] = e
	return nil
}

// Complete marks the instance done and records what actually happened.
func (s *MemoryStore) Complete(instanceID string, actuals Actuals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}
	e.Instance.Status = model.StatusCompleted
	e.CompletedAt = s.now()
	e.Actuals = actuals
	s.data[instanceID] = e
	return nil
}

// Get returns the entry for an instance ID.
func (s *MemoryStore) Get(instanceID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[instanceID]
	return e, ok
}

// List returns the entries matching the filter, ordered by start time.
func (s *MemoryStore) List(f Filter) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		if f.DefinitionID != "" && e.Instance.DefinitionID != f.DefinitionID {
			continue
		}
		if f.Category != "" && (e.Instance.Def == nil || e.Instance.Def.Category != f.Category) {
			continue
		}
		if f.Status != "" && e.Instance.Status.String() != f.Status {
			continue
		}
		if !f.From.IsZero() && e.Instance.Start.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.Instance.Start.Before(f.To) {
			continue
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Instance.Start.Equal(res[j].Instance.Start) {
			return res[i].Instance.Start.Before(res[j].Instance.Start)
		}
		return res[i].Instance.ID < res[j].Instance.ID
	})
	return res
}

// ConfirmedIn returns the confirmed instances starting inside the horizon,
// ready to pre-seed a planning pass.
func (s *MemoryStore) ConfirmedIn(h model.Horizon) []model.ErrandInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.ErrandInstance
	for _, e := range s.data {
		if e.Instance.Status != model.StatusConfirmed {
			continue
		}
		if !h.Contains(e.Instance.Start) {
			continue
		}
		res = append(res, e.Instance)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Start.Equal(res[j].Start) {
			return res[i].Start.Before(res[j].Start)
		}
		return res[i].ID < res[j].ID
	})
	return res
}
