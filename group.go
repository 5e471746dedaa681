package gridgo

import (
	"fmt"
	"strings"

	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/internal/names"
	"github.com/hupe1980/gridgo/nameindex"
	"github.com/hupe1980/gridgo/storage"
)

// VarSel selects the attribute container inside a group: a variable by its
// ordinal id, or the group itself.
type VarSel int

// Global addresses the group's own attribute set.
const Global VarSel = -1

// Group is one node of the dataset tree. It owns subgroups, variables,
// dimensions, user types and the group's own attribute set.
type Group struct {
	hdr    nameindex.Header
	ds     *Dataset
	parent *Group

	groups *nameindex.Index
	vars   *nameindex.Index
	dims   *nameindex.Index
	types  *nameindex.Index
	atts   attrSet

	// structDirty marks the child set or ordering as changed since the
	// last commit. created means the container object exists in the store.
	structDirty bool
	created     bool
}

func newGroup(ds *Dataset, parent *Group, name string, id int) *Group {
	return &Group{
		hdr:    nameindex.Header{Sort: nameindex.SortGroup, ID: id, Name: name},
		ds:     ds,
		parent: parent,
		groups: nameindex.New(0),
		vars:   nameindex.New(0),
		dims:   nameindex.New(0),
		types:  nameindex.New(0),
		atts:   newAttrSet(0),
	}
}

func (g *Group) Hdr() *nameindex.Header { return &g.hdr }

// Name returns the group name. The root group's name is empty.
func (g *Group) Name() string { return g.hdr.Name }

// Parent returns the parent group, or nil for the root.
func (g *Group) Parent() *Group { return g.parent }

// Dataset returns the owning dataset.
func (g *Group) Dataset() *Dataset { return g.ds }

// IsRoot reports whether g is the dataset's root group.
func (g *Group) IsRoot() bool { return g.parent == nil }

// Path returns the absolute group path, "/" for the root.
func (g *Group) Path() string {
	if g.parent == nil {
		return "/"
	}
	var sb strings.Builder
	for _, name := range g.pathChain() {
		sb.WriteString("/")
		sb.WriteString(name)
	}
	return sb.String()
}

// pathChain returns the name chain from the root, empty for the root.
func (g *Group) pathChain() []string {
	if g.parent == nil {
		return nil
	}
	return append(g.parent.pathChain(), g.hdr.Name)
}

// loc returns the group's container location in the backing store.
func (g *Group) loc() storage.Location {
	return storage.GroupLocation(g.pathChain()...)
}

// NumAttrs returns the number of attributes on the group.
func (g *Group) NumAttrs() int { return g.atts.len() }

// Group returns the named subgroup.
func (g *Group) Group(name string) (*Group, error) {
	obj, ok := g.groups.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	return obj.(*Group), nil
}

// Groups returns the subgroups in definition order.
func (g *Group) Groups() []*Group {
	out := make([]*Group, 0, g.groups.Len())
	for _, obj := range g.groups.Snapshot() {
		out = append(out, obj.(*Group))
	}
	return out
}

// Var returns the named variable.
func (g *Group) Var(name string) (*Variable, error) {
	obj, ok := g.vars.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, name)
	}
	return obj.(*Variable), nil
}

// Vars returns the variables in definition order.
func (g *Group) Vars() []*Variable {
	out := make([]*Variable, 0, g.vars.Len())
	for _, obj := range g.vars.Snapshot() {
		out = append(out, obj.(*Variable))
	}
	return out
}

// Dim returns the named dimension defined in this group.
func (g *Group) Dim(name string) (*Dimension, error) {
	obj, ok := g.dims.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, name)
	}
	return obj.(*Dimension), nil
}

// Dims returns the dimensions defined in this group, in definition order.
func (g *Group) Dims() []*Dimension {
	out := make([]*Dimension, 0, g.dims.Len())
	for _, obj := range g.dims.Snapshot() {
		out = append(out, obj.(*Dimension))
	}
	return out
}

// FindDim resolves a dimension name against this group and its ancestors,
// nearest definition first.
func (g *Group) FindDim(name string) (*Dimension, error) {
	for anc := g; anc != nil; anc = anc.parent {
		if obj, ok := anc.dims.Lookup(name); ok {
			return obj.(*Dimension), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, name)
}

// TypeByName resolves a user type name against this group and its
// ancestors, nearest definition first.
func (g *Group) TypeByName(name string) (*UserType, error) {
	for anc := g; anc != nil; anc = anc.parent {
		if obj, ok := anc.types.Lookup(name); ok {
			return obj.(*UserType), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTypeNotFound, name)
}

// Types returns the user types defined in this group, in definition order.
func (g *Group) Types() []*UserType {
	out := make([]*UserType, 0, g.types.Len())
	for _, obj := range g.types.Snapshot() {
		out = append(out, obj.(*UserType))
	}
	return out
}

// attrTarget is a resolved variable selector: the attribute set a protocol
// operation addresses, plus its store location.
type attrTarget struct {
	g   *Group
	v   *Variable // nil when the group itself is addressed
	set *attrSet
	loc storage.Location
}

func (g *Group) target(v VarSel) (attrTarget, error) {
	if v == Global {
		return attrTarget{g: g, set: &g.atts, loc: g.loc()}, nil
	}
	obj, ok := g.vars.At(int(v))
	if !ok {
		return attrTarget{}, fmt.Errorf("%w: selector %d", ErrVariableNotFound, int(v))
	}
	vv := obj.(*Variable)
	return attrTarget{g: g, v: vv, set: &vv.atts, loc: vv.loc()}, nil
}

// markStructDirty flags the addressed container for a metadata refresh at
// commit.
func (t attrTarget) markStructDirty() {
	if t.v != nil {
		t.v.structDirty = true
		return
	}
	t.g.structDirty = true
}

func checkName(name string) error {
	if names.TooLong(name) {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	if !names.Valid(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// nameTaken reports whether name is already bound to a subgroup, variable
// or user type of this group. Dimensions have their own namespace.
func (g *Group) nameTaken(name string) bool {
	if _, ok := g.groups.Lookup(name); ok {
		return true
	}
	if _, ok := g.vars.Lookup(name); ok {
		return true
	}
	if _, ok := g.types.Lookup(name); ok {
		return true
	}
	return false
}

// CreateGroup defines a subgroup. Groups are a feature of the native model;
// the classic model rejects them.
func (g *Group) CreateGroup(name string) (*Group, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.classic {
		return nil, fmt.Errorf("%w: groups", ErrClassicModel)
	}
	if err := ds.requireDefine(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.nameTaken(name) {
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
	}

	child := newGroup(ds, g, name, g.groups.Len())
	g.groups.Add(child)
	g.structDirty = true

	ds.logger.Debug("group created", "path", child.Path())
	return child, nil
}

// AddDimension defines a dimension. A length of zero declares it unlimited.
func (g *Group) AddDimension(name string, length int64) (*Dimension, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.requireDefine(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: dimension length %d", ErrInvalidCount, length)
	}
	if _, ok := g.dims.Lookup(name); ok {
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	unlimited := length == 0
	if unlimited && ds.classic && g.hasUnlimitedDim() {
		return nil, fmt.Errorf("%w: a second unlimited dimension", ErrClassicModel)
	}

	d := &Dimension{
		hdr:       nameindex.Header{Sort: nameindex.SortDimension, ID: g.dims.Len(), Name: name},
		g:         g,
		length:    length,
		unlimited: unlimited,
	}
	g.dims.Add(d)
	g.structDirty = true

	ds.logger.Debug("dimension created", "path", g.Path(), "dim", name, "len", length, "unlimited", unlimited)
	return d, nil
}

func (g *Group) hasUnlimitedDim() bool {
	for _, obj := range g.dims.Snapshot() {
		if obj.(*Dimension).unlimited {
			return true
		}
	}
	return false
}

// AddVariable defines a variable of the given stored type, shaped by dims.
// Every dimension must be defined in this group or one of its ancestors.
func (g *Group) AddVariable(name string, typ dtype.ID, dims []*Dimension) (*Variable, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.requireDefine(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.nameTaken(name) {
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	if typ == dtype.Native {
		return nil, fmt.Errorf("%w: variable type must be concrete", ErrBadType)
	}
	if !dtype.IsAtomic(typ) {
		if _, ok := ds.types[typ]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrBadType, typ)
		}
	}
	if ds.classic && !dtype.IsClassic(typ) {
		return nil, fmt.Errorf("%w: %s", ErrClassicModel, typ)
	}
	for i, d := range dims {
		if d == nil || !d.visibleFrom(g) {
			return nil, fmt.Errorf("%w: dimension %d", ErrDimensionNotFound, i)
		}
		if ds.classic && d.unlimited && i != 0 {
			return nil, fmt.Errorf("%w: unlimited dimension %q beyond the first position", ErrClassicModel, d.Name())
		}
	}

	v := &Variable{
		hdr:  nameindex.Header{Sort: nameindex.SortVariable, ID: g.vars.Len(), Name: name},
		g:    g,
		typ:  typ,
		dims: append([]*Dimension(nil), dims...),
		atts: newAttrSet(0),
	}
	v.structDirty = true
	g.vars.Add(v)
	g.structDirty = true

	ds.logger.Debug("variable created", "path", g.Path(), "var", name, "type", typ.String(), "dims", len(dims))
	return v, nil
}

func (d *Dimension) visibleFrom(g *Group) bool {
	for anc := g; anc != nil; anc = anc.parent {
		if anc == d.g {
			return true
		}
	}
	return false
}
