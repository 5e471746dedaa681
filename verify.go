package gridgo

import (
	"fmt"

	"github.com/hupe1980/gridgo/nameindex"
)

// Verify checks the structural invariants of the in-memory tree: every name
// map congruent with the slice it indexes, ordinals dense, dirty bitmaps
// agreeing with descriptor flags. Diagnostic only; tests and the inspector
// CLI call it.
func (ds *Dataset) Verify() error {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.closed {
		return ErrClosed
	}
	return verifyGroup(ds.root)
}

func verifyGroup(g *Group) error {
	for _, idx := range []*nameindex.Index{g.groups, g.vars, g.dims, g.types} {
		if err := idx.Verify(); err != nil {
			return fmt.Errorf("group %s: %w", g.Path(), err)
		}
	}
	if err := g.atts.verify(); err != nil {
		return fmt.Errorf("group %s attributes: %w", g.Path(), err)
	}
	for _, obj := range g.vars.Snapshot() {
		v := obj.(*Variable)
		if err := v.atts.verify(); err != nil {
			return fmt.Errorf("variable %s attributes: %w", v.loc(), err)
		}
	}
	for _, obj := range g.groups.Snapshot() {
		if err := verifyGroup(obj.(*Group)); err != nil {
			return err
		}
	}
	return nil
}
