package flash

import (
	"sort"

	"FlashScan/internal/domain/models"
)

// Registry owns the active flashes of a single pass, in insertion order.
type Registry struct {
	items   []*models.Flash
	ceiling int
}

// NewRegistry creates a registry. A ceiling of 0 leaves growth unbounded.
func NewRegistry(ceiling int) *Registry {
	return &Registry{items: make([]*models.Flash, 0, 64), ceiling: ceiling}
}

// Len returns the number of active flashes.
func (r *Registry) Len() int { return len(r.items) }

// Insert appends f. It fails with ErrRegistryExhausted once the ceiling is reached.
func (r *Registry) Insert(f *models.Flash) error {
	if r.ceiling > 0 && len(r.items) >= r.ceiling {
		return ErrRegistryExhausted
	}
	r.items = append(r.items, f)
	return nil
}

// Each calls fn for every flash present when the call started, in insertion order.
// Flashes inserted by fn are not visited.
func (r *Registry) Each(fn func(i int, f *models.Flash)) {
	n := len(r.items)
	for i := 0; i < n; i++ {
		fn(i, r.items[i])
	}
}

// RemoveBatch removes the flashes at indices (highest index first so pending indices stay
// valid) and returns them in ascending index order.
func (r *Registry) RemoveBatch(indices []int) []*models.Flash {
	if len(indices) == 0 {
		return nil
	}
	idx := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))

	out := make([]*models.Flash, len(idx))
	for k, i := range idx {
		out[len(idx)-1-k] = r.items[i]
		copy(r.items[i:], r.items[i+1:])
		r.items[len(r.items)-1] = nil
		r.items = r.items[:len(r.items)-1]
	}
	return out
}

// Snapshot returns value copies of the active flashes.
func (r *Registry) Snapshot() []models.Flash {
	out := make([]models.Flash, len(r.items))
	for i, f := range r.items {
		out[i] = *f
	}
	return out
}
