package flash

import (
	"testing"

	"FlashScan/internal/domain/models"
)

func fill(r *Registry, n int) {
	for i := 1; i <= n; i++ {
		_ = r.Insert(&models.Flash{ID: i})
	}
}

func TestRemoveBatchDescendingKeepsOthers(t *testing.T) {
	r := NewRegistry(0)
	fill(r, 5)

	removed := r.RemoveBatch([]int{1, 3})
	if len(removed) != 2 || removed[0].ID != 2 || removed[1].ID != 4 {
		t.Fatalf("unexpected removed set %+v", removed)
	}
	var left []int
	r.Each(func(_ int, f *models.Flash) { left = append(left, f.ID) })
	if len(left) != 3 || left[0] != 1 || left[1] != 3 || left[2] != 5 {
		t.Fatalf("unexpected remaining ids %v", left)
	}
}

func TestRemoveBatchUnsortedIndices(t *testing.T) {
	r := NewRegistry(0)
	fill(r, 4)
	removed := r.RemoveBatch([]int{3, 0})
	if removed[0].ID != 1 || removed[1].ID != 4 || r.Len() != 2 {
		t.Fatalf("unexpected result %+v len=%d", removed, r.Len())
	}
}

func TestEachSkipsFlashesInsertedDuringPass(t *testing.T) {
	r := NewRegistry(0)
	fill(r, 2)
	visited := 0
	r.Each(func(_ int, _ *models.Flash) {
		visited++
		_ = r.Insert(&models.Flash{ID: 100 + visited})
	})
	if visited != 2 || r.Len() != 4 {
		t.Fatalf("visited=%d len=%d", visited, r.Len())
	}
}

func TestInsertCeiling(t *testing.T) {
	r := NewRegistry(1)
	if err := r.Insert(&models.Flash{ID: 1}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := r.Insert(&models.Flash{ID: 2}); err != ErrRegistryExhausted {
		t.Fatalf("expected exhausted, got %v", err)
	}
}
