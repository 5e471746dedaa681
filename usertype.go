package gridgo

import (
	"fmt"
	"math"

	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/nameindex"
)

// vlenDescriptorSize is the in-memory footprint charged per vlen element.
// Elements are held out of line behind a length-and-pointer descriptor, so
// the figure only feeds byte accounting, never buffer sizing.
const vlenDescriptorSize = 16

// EnumMember binds a symbolic name to an integer value of the enum's base
// type.
type EnumMember struct {
	Name  string
	Value int64
}

// CompoundField describes one member of a compound type: its name, element
// type and byte offset within the compound element.
type CompoundField struct {
	Name   string
	Type   dtype.ID
	Offset int
}

// UserType is a user-defined type: an enum, opaque, vlen or compound. User
// types are defined inside a group and visible from that group's subtree,
// but their identifiers are dataset-wide.
type UserType struct {
	hdr nameindex.Header
	g   *Group

	id    dtype.ID
	class dtype.Class
	size  int
	base  dtype.ID

	members []EnumMember
	fields  []CompoundField
}

func (t *UserType) Hdr() *nameindex.Header { return &t.hdr }

// Name returns the type name.
func (t *UserType) Name() string { return t.hdr.Name }

// ID returns the dataset-wide type identifier.
func (t *UserType) ID() dtype.ID { return t.id }

// Class returns the type's class.
func (t *UserType) Class() dtype.Class { return t.class }

// Base returns the base type of an enum or vlen, and Native otherwise.
func (t *UserType) Base() dtype.ID { return t.base }

// Size returns the stored element size in bytes. For vlen types this is the
// size of one base element, not of a vlen value.
func (t *UserType) Size() int { return t.size }

// MemSize returns the in-memory element footprint. Vlen elements are
// descriptors; every other class matches the stored size.
func (t *UserType) MemSize() int {
	if t.class == dtype.ClassVLen {
		return vlenDescriptorSize
	}
	return t.size
}

// Group returns the defining group.
func (t *UserType) Group() *Group { return t.g }

// Members returns a copy of an enum's members, in definition order.
func (t *UserType) Members() []EnumMember {
	out := make([]EnumMember, len(t.members))
	copy(out, t.members)
	return out
}

// Fields returns a copy of a compound's fields, in definition order.
func (t *UserType) Fields() []CompoundField {
	out := make([]CompoundField, len(t.fields))
	copy(out, t.fields)
	return out
}

// beginTypeDef runs the checks shared by every type definition. The caller
// holds the dataset lock.
func (g *Group) beginTypeDef(name string) error {
	if g.ds.classic {
		return fmt.Errorf("%w: user-defined types", ErrClassicModel)
	}
	if err := g.ds.requireDefine(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	if g.nameTaken(name) {
		return fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	return nil
}

// registerType assigns the dataset-wide identifier and installs the type in
// its defining group. The caller holds the dataset lock.
func (ds *Dataset) registerType(g *Group, t *UserType) *UserType {
	t.id = ds.nextTypeID
	ds.nextTypeID++
	t.g = g
	t.hdr.Sort = nameindex.SortType
	t.hdr.ID = g.types.Len()
	g.types.Add(t)
	g.structDirty = true
	ds.types[t.id] = t
	ds.logger.Debug("type created", "path", g.Path(), "type", t.hdr.Name, "class", t.class.String(), "id", uint32(t.id))
	return t
}

// CreateEnumType defines an enum over an integer base type. Member names
// and values must be unique, and every value must fit the base type.
func (g *Group) CreateEnumType(name string, base dtype.ID, members []EnumMember) (*UserType, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := g.beginTypeDef(name); err != nil {
		return nil, err
	}
	if !dtype.IsInteger(base) {
		return nil, fmt.Errorf("%w: enum base %s", ErrBadType, base)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: enum needs at least one member", ErrInvalidCount)
	}
	seenNames := make(map[string]bool, len(members))
	seenValues := make(map[int64]bool, len(members))
	for _, m := range members {
		if err := checkName(m.Name); err != nil {
			return nil, err
		}
		if seenNames[m.Name] {
			return nil, fmt.Errorf("%w: enum member %q", ErrNameInUse, m.Name)
		}
		if seenValues[m.Value] {
			return nil, fmt.Errorf("%w: duplicate enum value %d", ErrBadType, m.Value)
		}
		if !enumValueFits(base, m.Value) {
			return nil, fmt.Errorf("%w: enum value %d does not fit %s", ErrBadType, m.Value, base)
		}
		seenNames[m.Name] = true
		seenValues[m.Value] = true
	}

	t := &UserType{
		hdr:     nameindex.Header{Name: name},
		class:   dtype.ClassEnum,
		size:    dtype.Size(base),
		base:    base,
		members: append([]EnumMember(nil), members...),
	}
	return ds.registerType(g, t), nil
}

// CreateOpaqueType defines an opaque type of a fixed byte size.
func (g *Group) CreateOpaqueType(name string, size int) (*UserType, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := g.beginTypeDef(name); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: opaque size %d", ErrInvalidCount, size)
	}

	t := &UserType{
		hdr:   nameindex.Header{Name: name},
		class: dtype.ClassOpaque,
		size:  size,
	}
	return ds.registerType(g, t), nil
}

// CreateVLenType defines a variable-length type over a concrete base type.
func (g *Group) CreateVLenType(name string, base dtype.ID) (*UserType, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := g.beginTypeDef(name); err != nil {
		return nil, err
	}
	if base == dtype.Native {
		return nil, fmt.Errorf("%w: vlen base must be concrete", ErrBadType)
	}
	baseSize := ds.elemMemSize(base)
	if baseSize == 0 {
		return nil, fmt.Errorf("%w: vlen base %s", ErrBadType, base)
	}

	t := &UserType{
		hdr:   nameindex.Header{Name: name},
		class: dtype.ClassVLen,
		size:  baseSize,
		base:  base,
	}
	return ds.registerType(g, t), nil
}

// CreateCompoundType defines a compound type of the given total size.
// Fields are scalar typed, uniquely named and must lie inside the element.
func (g *Group) CreateCompoundType(name string, size int, fields []CompoundField) (*UserType, error) {
	ds := g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := g.beginTypeDef(name); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: compound size %d", ErrInvalidCount, size)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: compound needs at least one field", ErrInvalidCount)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := checkName(f.Name); err != nil {
			return nil, err
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: compound field %q", ErrNameInUse, f.Name)
		}
		seen[f.Name] = true
		fs := ds.elemMemSize(f.Type)
		if fs == 0 {
			return nil, fmt.Errorf("%w: field %q type %s", ErrBadType, f.Name, f.Type)
		}
		if f.Offset < 0 || f.Offset+fs > size {
			return nil, fmt.Errorf("%w: field %q at offset %d overflows %d-byte compound", ErrBadType, f.Name, f.Offset, size)
		}
	}

	t := &UserType{
		hdr:    nameindex.Header{Name: name},
		class:  dtype.ClassCompound,
		size:   size,
		fields: append([]CompoundField(nil), fields...),
	}
	return ds.registerType(g, t), nil
}

func enumValueFits(base dtype.ID, v int64) bool {
	switch base {
	case dtype.Byte:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case dtype.UByte:
		return v >= 0 && v <= math.MaxUint8
	case dtype.Short:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case dtype.UShort:
		return v >= 0 && v <= math.MaxUint16
	case dtype.Int:
		return v >= math.MinInt32 && v <= math.MaxInt32
	case dtype.UInt:
		return v >= 0 && v <= math.MaxUint32
	case dtype.Int64:
		return true
	case dtype.UInt64:
		return v >= 0
	default:
		return false
	}
}
