package readmodel

import "sort"

// Selection tracks which search rows are selected. It is not safe for
// concurrent use; it belongs to the interactive context.
type Selection struct {
	size    int
	indices map[int]struct{}
}

// NewSelection creates an empty selection over size rows.
func NewSelection(size int) *Selection {
	return &Selection{size: size, indices: make(map[int]struct{})}
}

// Reset clears the selection and sets a new row count.
func (s *Selection) Reset(size int) {
	s.size = size
	s.indices = make(map[int]struct{})
}

// Toggle flips row i and reports whether it is now selected.
// Out-of-range indices are ignored.
func (s *Selection) Toggle(i int) bool {
	if i < 0 || i >= s.size {
		return false
	}
	if _, ok := s.indices[i]; ok {
		delete(s.indices, i)
		return false
	}
	s.indices[i] = struct{}{}
	return true
}

// Has reports whether row i is selected. A nil selection has nothing selected.
func (s *Selection) Has(i int) bool {
	if s == nil {
		return false
	}
	_, ok := s.indices[i]
	return ok
}

// Count returns the number of selected rows.
func (s *Selection) Count() int {
	if s == nil {
		return 0
	}
	return len(s.indices)
}

// Indices returns the selected rows in ascending order.
func (s *Selection) Indices() []int {
	if s == nil {
		return []int{}
	}
	out := make([]int, 0, len(s.indices))
	for i := range s.indices {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
