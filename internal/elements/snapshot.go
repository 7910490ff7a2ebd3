// Package elements tracks the addressable test elements seen on a page and
// grounds free-text action targets against them.
package elements

import (
	"encoding/json"
	"sync"
)

// TestElement describes one element carrying a test id.
type TestElement struct {
	ID          string `json:"test_id"`
	Tag         string `json:"tag,omitempty"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Snapshot is an insertion-ordered set of elements keyed by id. Merges only
// ever append: an element whose id is already known is discarded.
type Snapshot struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]TestElement
}

func NewSnapshot() *Snapshot {
	return &Snapshot{byID: make(map[string]TestElement)}
}

// Merge appends unseen elements and returns how many were added.
func (s *Snapshot) Merge(els ...TestElement) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, el := range els {
		if el.ID == "" {
			continue
		}
		if _, ok := s.byID[el.ID]; ok {
			continue
		}
		s.byID[el.ID] = el
		s.order = append(s.order, el.ID)
		added++
	}
	return added
}

func (s *Snapshot) Get(id string) (TestElement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.byID[id]
	return el, ok
}

func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Elements returns the elements in insertion order.
func (s *Snapshot) Elements() []TestElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TestElement, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Elements())
}
