package ledger

// DefaultCapacity bounds how many delivered workout ids are remembered.
const DefaultCapacity = 200

// ProcessedSet is an insertion-ordered set of workout ids with a fixed capacity. Once the
// capacity is exceeded the oldest inserted ids are evicted first. It is not safe for
// concurrent use; Ledger serializes access.
type ProcessedSet struct {
	capacity int
	order    []string
	index    map[string]struct{}
}

// NewProcessedSet builds a set from ids given oldest first. When more than capacity ids are
// supplied only the newest capacity are kept.
func NewProcessedSet(capacity int, ids ...string) *ProcessedSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &ProcessedSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		index:    make(map[string]struct{}, capacity),
	}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *ProcessedSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add inserts id and reports whether the set changed. Empty ids and ids already present
// leave the set untouched.
func (s *ProcessedSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.order = append(s.order, id)
	s.index[id] = struct{}{}
	if surplus := len(s.order) - s.capacity; surplus > 0 {
		for _, evicted := range s.order[:surplus] {
			delete(s.index, evicted)
		}
		s.order = append([]string(nil), s.order[surplus:]...)
	}
	return true
}

// IDs returns a copy of the ids, oldest first.
func (s *ProcessedSet) IDs() []string {
	return append([]string(nil), s.order...)
}

func (s *ProcessedSet) Len() int {
	return len(s.order)
}

func (s *ProcessedSet) Capacity() int {
	return s.capacity
}
