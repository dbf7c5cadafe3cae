package yactfr

import "github.com/kienanstewart/yactfr/internal/vm"

// PositionHandle is an independent, restorable snapshot of an
// iterator's decoding position. It may be held across the destruction
// of the iterator that produced it, but is only meaningful when
// restored into an iterator over the same element sequence (§5).
type PositionHandle struct {
	pos     *vm.Position
	mark    int64
	hasElem bool
}

// SavePosition captures the iterator's current decoding position.
func (it *Iterator) SavePosition() *PositionHandle {
	cp := *it.vm.Position()
	cp.SavedVals = append(cp.SavedVals[:0:0], cp.SavedVals...)
	cp.Stack = append(cp.Stack[:0:0], cp.Stack...)
	return &PositionHandle{pos: &cp, mark: it.mark, hasElem: it.elem != nil}
}

// RestorePosition replaces the iterator's current decoding position
// with h's. Restoring a saved position and advancing once yields the
// same element and offset as advancing once from the position that
// was originally saved, since a Position is a self-contained value
// with no external aliasing into the VM's read buffer.
func (it *Iterator) RestorePosition(h *PositionHandle) error {
	cp := *h.pos
	cp.SavedVals = append(cp.SavedVals[:0:0], h.pos.SavedVals...)
	cp.Stack = append(cp.Stack[:0:0], h.pos.Stack...)
	it.vm.SetPosition(&cp)
	it.mark = h.mark
	it.elem = nil
	if h.hasElem {
		it.elem = &cp.Elem
	}
	return nil
}
