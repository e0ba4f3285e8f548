package policy

// Set is an order-independent lookup over a policy list. It is the
// matching rule used both by session signing and by callers caching which
// actions an authorization already covers.
type Set struct {
	index map[Policy]int
}

// NewSet indexes policies. For duplicates the first position wins.
func NewSet(policies []Policy) *Set {
	s := &Set{index: make(map[Policy]int, len(policies))}
	for i, p := range policies {
		if _, seen := s.index[p]; !seen {
			s.index[p] = i
		}
	}
	return s
}

// Contains reports whether p is in the set.
func (s *Set) Contains(p Policy) bool {
	_, ok := s.index[p]
	return ok
}

// IndexOf returns the position of p in the original list.
func (s *Set) IndexOf(p Policy) (int, bool) {
	i, ok := s.index[p]
	return i, ok
}

// Len is the number of distinct policies.
func (s *Set) Len() int {
	return len(s.index)
}
