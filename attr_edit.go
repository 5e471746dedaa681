package gridgo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/storage"
)

// AttrInfo describes an attribute: its stored type and element count.
type AttrInfo struct {
	Type dtype.ID
	N    int
}

// Attr describes the named attribute without transferring its payload.
// Reserved virtual names at the root group's global scope are described
// from manifest state.
func (g *Group) Attr(v VarSel, name string) (AttrInfo, error) {
	ds := g.ds
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.closed {
		return AttrInfo{}, ErrClosed
	}
	if isVirtual(g, v, name) {
		val, err := ds.resolveVirtual(name, dtype.Native)
		if err != nil {
			return AttrInfo{}, err
		}
		return AttrInfo{Type: val.Type, N: val.N}, nil
	}
	t, err := g.target(v)
	if err != nil {
		return AttrInfo{}, err
	}
	a, ok := t.set.lookup(name)
	if !ok {
		return AttrInfo{}, fmt.Errorf("%w: %q", ErrAttrNotFound, name)
	}
	return AttrInfo{Type: a.ftype, N: a.n}, nil
}

// AttrPosition returns the ordinal position of the named attribute.
// Positions are dense within the container and not stable across
// deletions. Reserved virtual attributes have no position.
func (g *Group) AttrPosition(v VarSel, name string) (int, error) {
	ds := g.ds
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.closed {
		return 0, ErrClosed
	}
	if isVirtual(g, v, name) {
		return 0, fmt.Errorf("%w: %q has no position", ErrReservedAttr, name)
	}
	t, err := g.target(v)
	if err != nil {
		return 0, err
	}
	pos := t.set.position(name)
	if pos < 0 {
		return 0, fmt.Errorf("%w: %q", ErrAttrNotFound, name)
	}
	return pos, nil
}

// AttrName returns the attribute name at the given position.
func (g *Group) AttrName(v VarSel, position int) (string, error) {
	ds := g.ds
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.closed {
		return "", ErrClosed
	}
	t, err := g.target(v)
	if err != nil {
		return "", err
	}
	a, ok := t.set.at(position)
	if !ok {
		return "", fmt.Errorf("%w: position %d", ErrAttrNotFound, position)
	}
	return a.hdr.Name, nil
}

// AttrCount returns the number of attributes on the selected container.
func (g *Group) AttrCount(v VarSel) (int, error) {
	ds := g.ds
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.closed {
		return 0, ErrClosed
	}
	t, err := g.target(v)
	if err != nil {
		return 0, err
	}
	return t.set.len(), nil
}

// AttrNames returns the attribute names of the selected container in index
// order.
func (g *Group) AttrNames(v VarSel) ([]string, error) {
	ds := g.ds
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.closed {
		return nil, ErrClosed
	}
	t, err := g.target(v)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, t.set.len())
	for _, a := range t.set.snapshot() {
		names = append(names, a.hdr.Name)
	}
	return names, nil
}

// RenameAttr renames an attribute in place; the descriptor keeps its
// ordinal position. A collision with an existing name fails and leaves
// both attributes unchanged. When the attribute was already committed, its
// store object is deleted synchronously and the payload is rewritten under
// the new name at the next commit.
func (g *Group) RenameAttr(ctx context.Context, v VarSel, oldName, newName string) error {
	ds := g.ds
	start := time.Now()
	err := ds.renameAttr(ctx, g, v, oldName, newName)
	ds.metrics.RecordAttrRename(time.Since(start), err)
	ds.logger.LogAttrRename(ctx, attrIdent(g, v), oldName, newName, err)
	return err
}

func (ds *Dataset) renameAttr(ctx context.Context, g *Group, v VarSel, oldName, newName string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.requireWritable(); err != nil {
		return err
	}
	if err := checkName(newName); err != nil {
		return err
	}
	if reservedWriteBlocked(g, v, oldName) || reservedWriteBlocked(g, v, newName) {
		return fmt.Errorf("%w: reserved name", ErrNameInUse)
	}

	t, err := g.target(v)
	if err != nil {
		return err
	}
	if _, taken := t.set.lookup(newName); taken {
		return fmt.Errorf("%w: %q", ErrNameInUse, newName)
	}
	a, ok := t.set.lookup(oldName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrAttrNotFound, oldName)
	}

	// A longer name grows the descriptor.
	if len(newName) > len(oldName) {
		if err := ds.requireDefine(); err != nil {
			return err
		}
	}

	if a.created {
		if err := ds.store.DeleteAttribute(ctx, t.loc, oldName); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &StoreError{Op: "delete attribute", Loc: t.loc, cause: err}
		}
		a.created = false
	}

	// Two-phase: mutate the name, then rebuild the map it indexes.
	a.hdr.Name = newName
	if err := t.set.idx.Rebuild(); err != nil {
		return err
	}
	t.set.markDirty(a)
	t.markStructDirty()
	return nil
}

// DeleteAttr removes the named attribute. Every descriptor behind it
// shifts down one position, ordinals stay dense, and the name map is
// rebuilt. Deletion is structural: it needs definition mode, entered
// implicitly outside the classic model. A committed attribute's store
// object is deleted synchronously.
func (g *Group) DeleteAttr(ctx context.Context, v VarSel, name string) error {
	ds := g.ds
	start := time.Now()
	err := ds.deleteAttr(ctx, g, v, name)
	ds.metrics.RecordAttrDelete(time.Since(start), err)
	ds.logger.LogAttrDelete(ctx, attrIdent(g, v), name, err)
	return err
}

func (ds *Dataset) deleteAttr(ctx context.Context, g *Group, v VarSel, name string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.requireWritable(); err != nil {
		return err
	}
	if reservedWriteBlocked(g, v, name) {
		return fmt.Errorf("%w: %q is reserved", ErrNameInUse, name)
	}
	t, err := g.target(v)
	if err != nil {
		return err
	}
	pos := t.set.position(name)
	if pos < 0 {
		return fmt.Errorf("%w: %q", ErrAttrNotFound, name)
	}
	if err := ds.requireDefine(); err != nil {
		return err
	}

	a, _ := t.set.at(pos)
	if a.created {
		if err := ds.store.DeleteAttribute(ctx, t.loc, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &StoreError{Op: "delete attribute", Loc: t.loc, cause: err}
		}
	}

	removed, err := t.set.removeAt(pos)
	if err != nil {
		return err
	}
	removed.data.release()
	t.markStructDirty()
	return nil
}
