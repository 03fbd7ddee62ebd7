package core

import (
	"sort"
	"testing"
)

func TestSelectionToggleIdempotentUnderDoubleApplication(t *testing.T) {
	sel := NewSelection()
	sel.Toggle(3)
	sel.Toggle(5)

	sel.Toggle(7)
	sel.Toggle(7)

	if sel.Has(7) {
		t.Fatalf("toggle applied twice should restore the set, 7 still selected")
	}
	if sel.Count() != 2 {
		t.Fatalf("expected count 2, got %d", sel.Count())
	}
	if !sel.Has(3) || !sel.Has(5) {
		t.Fatalf("unrelated ids must be untouched by double toggle")
	}
}

func TestSelectionToggleCommutesAcrossIDs(t *testing.T) {
	a := NewSelection()
	a.Toggle(1)
	a.Toggle(2)

	b := NewSelection()
	b.Toggle(2)
	b.Toggle(1)

	idsA := a.IDs()
	idsB := b.IDs()
	sort.Slice(idsA, func(i, j int) bool { return idsA[i] < idsA[j] })
	sort.Slice(idsB, func(i, j int) bool { return idsB[i] < idsB[j] })
	if len(idsA) != 2 || len(idsB) != 2 || idsA[0] != idsB[0] || idsA[1] != idsB[1] {
		t.Fatalf("toggle order must not matter: %v vs %v", idsA, idsB)
	}
}

func TestSelectionClear(t *testing.T) {
	sel := NewSelection()
	sel.Toggle(3)
	sel.Toggle(5)
	sel.Toggle(9)

	sel.Clear()

	if sel.Count() != 0 {
		t.Fatalf("expected empty selection after clear, got %d", sel.Count())
	}
	if got := sel.IDs(); len(got) != 0 {
		t.Fatalf("expected no ids after clear, got %v", got)
	}
}

func TestSelectionIDsIsASnapshot(t *testing.T) {
	sel := NewSelection()
	sel.Toggle(1)

	ids := sel.IDs()
	sel.Toggle(2)

	if len(ids) != 1 {
		t.Fatalf("returned slice must not grow with later toggles, got %v", ids)
	}
}
