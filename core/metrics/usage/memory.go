package usage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore stores records in memory for testing or lightweight usage.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add inserts or updates the record aggregated by day and category.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.Category] == nil {
		s.data[r.Category] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.Category][d]
	if rec == nil {
		rec = &Record{Category: r.Category, Date: d}
		s.data[r.Category][d] = rec
	}
	rec.PlannedMin += r.PlannedMin
	rec.TravelMin += r.TravelMin
	rec.TravelKm += r.TravelKm
	rec.Occurrences += r.Occurrences
	rec.Unschedulable += r.Unschedulable
	return nil
}

// Query returns records between start and end inclusive.
func (s *MemoryStore) Query(category string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	var res []Record
	m := s.data[category]
	for d, r := range m {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

// Categories lists the categories with at least one record, sorted.
func (s *MemoryStore) Categories() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := make([]string, 0, len(s.data))
	for c := range s.data {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats, nil
}
