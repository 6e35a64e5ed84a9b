package rag

// Registry maps dense index positions to chunks.
// A nil slot is a hole left by a deleted document. The vector at that
// position stays in the index, so the covered range only grows while Len may shrink.
// Registry is not safe for concurrent use; Engine guards it.
type Registry struct {
	slots []*Chunk
	live  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return r.live
}

// Get returns the chunk at pos. ok is false for holes and out-of-range positions.
func (r *Registry) Get(pos int) (Chunk, bool) {
	if pos < 0 || pos >= len(r.slots) || r.slots[pos] == nil {
		return Chunk{}, false
	}
	return *r.slots[pos], true
}

// Put stores chunk at pos, growing the registry with holes as needed.
// It returns false without changes if pos is negative or already occupied.
func (r *Registry) Put(pos int, chunk Chunk) bool {
	if pos < 0 {
		return false
	}
	r.Grow(pos + 1)
	if r.slots[pos] != nil {
		return false
	}
	c := chunk
	r.slots[pos] = &c
	r.live++
	return true
}

// Grow extends the registry with holes until it covers n positions.
func (r *Registry) Grow(n int) {
	for len(r.slots) < n {
		r.slots = append(r.slots, nil)
	}
}

// RemoveDocument clears every entry owned by documentID and returns how many were removed.
func (r *Registry) RemoveDocument(documentID string) int {
	removed := 0
	for pos, c := range r.slots {
		if c != nil && c.DocumentID == documentID {
			r.slots[pos] = nil
			removed++
		}
	}
	r.live -= removed
	return removed
}

// Clear removes the entries at the given positions.
func (r *Registry) Clear(positions ...int) {
	for _, pos := range positions {
		if pos >= 0 && pos < len(r.slots) && r.slots[pos] != nil {
			r.slots[pos] = nil
			r.live--
		}
	}
}

// Documents returns the number of distinct documents with a live entry.
func (r *Registry) Documents() int {
	seen := make(map[string]struct{})
	for _, c := range r.slots {
		if c != nil {
			seen[c.DocumentID] = struct{}{}
		}
	}
	return len(seen)
}
