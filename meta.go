package gridgo

import (
	"context"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/gridgo/codec"
	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/nameindex"
	"github.com/hupe1980/gridgo/storage"
)

// metaVersion versions the structural metadata encoding.
const metaVersion = 1

// containerMeta is the structural metadata object a container carries under
// the reserved metadata name. Store listings are lexical; this record is the
// authoritative child and attribute ordering, plus everything about dims,
// types and variable shape that attribute objects cannot express.
type containerMeta struct {
	Version   int        `json:"version"`
	AttrOrder []string   `json:"attr_order,omitempty"`
	Groups    []string   `json:"groups,omitempty"`
	Vars      []string   `json:"vars,omitempty"`
	Dims      []dimMeta  `json:"dims,omitempty"`
	Types     []typeMeta `json:"types,omitempty"`
	Var       *varMeta   `json:"var,omitempty"`
}

type dimMeta struct {
	Name      string `json:"name"`
	Len       int64  `json:"len"`
	Unlimited bool   `json:"unlimited,omitempty"`
}

type typeMeta struct {
	Name    string       `json:"name"`
	ID      uint32       `json:"id"`
	Class   uint8        `json:"class"`
	Size    int          `json:"size"`
	Base    uint32       `json:"base,omitempty"`
	Members []memberMeta `json:"members,omitempty"`
	Fields  []fieldMeta  `json:"fields,omitempty"`
}

type memberMeta struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type fieldMeta struct {
	Name   string `json:"name"`
	Type   uint32 `json:"type"`
	Offset int    `json:"offset"`
}

type varMeta struct {
	Type    uint32   `json:"type"`
	Dims    []string `json:"dims,omitempty"`
	Written bool     `json:"written,omitempty"`
}

func (g *Group) buildMeta() *containerMeta {
	m := &containerMeta{Version: metaVersion}
	for _, a := range g.atts.snapshot() {
		m.AttrOrder = append(m.AttrOrder, a.hdr.Name)
	}
	for _, obj := range g.groups.Snapshot() {
		m.Groups = append(m.Groups, obj.Hdr().Name)
	}
	for _, obj := range g.vars.Snapshot() {
		m.Vars = append(m.Vars, obj.Hdr().Name)
	}
	for _, obj := range g.dims.Snapshot() {
		d := obj.(*Dimension)
		m.Dims = append(m.Dims, dimMeta{Name: d.hdr.Name, Len: d.length, Unlimited: d.unlimited})
	}
	for _, obj := range g.types.Snapshot() {
		t := obj.(*UserType)
		tm := typeMeta{
			Name:  t.hdr.Name,
			ID:    uint32(t.id),
			Class: uint8(t.class),
			Size:  t.size,
			Base:  uint32(t.base),
		}
		for _, mem := range t.members {
			tm.Members = append(tm.Members, memberMeta{Name: mem.Name, Value: mem.Value})
		}
		for _, f := range t.fields {
			tm.Fields = append(tm.Fields, fieldMeta{Name: f.Name, Type: uint32(f.Type), Offset: f.Offset})
		}
		m.Types = append(m.Types, tm)
	}
	return m
}

func (v *Variable) buildMeta() *containerMeta {
	m := &containerMeta{
		Version: metaVersion,
		Var:     &varMeta{Type: uint32(v.typ), Written: v.written},
	}
	for _, d := range v.dims {
		m.Var.Dims = append(m.Var.Dims, d.hdr.Name)
	}
	for _, a := range v.atts.snapshot() {
		m.AttrOrder = append(m.AttrOrder, a.hdr.Name)
	}
	return m
}

func encodeMeta(m *containerMeta) ([]byte, error) {
	return gojson.Marshal(m)
}

// loadMeta fetches and decodes a container's metadata object. A container
// without one is legal: attributes then load in lexical order and the
// container has no children of its own.
func (ds *Dataset) loadMeta(ctx context.Context, loc storage.Location) (*containerMeta, error) {
	blob, err := ds.store.GetAttribute(ctx, loc, metaAttrName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get metadata", Loc: loc, cause: err}
	}
	var m containerMeta
	if err := gojson.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("container metadata at %s: %w", loc, err)
	}
	if m.Version != metaVersion {
		return nil, fmt.Errorf("container metadata at %s: unsupported version %d", loc, m.Version)
	}
	return &m, nil
}

// loadTree reconstructs the in-memory tree from the store at open.
func (ds *Dataset) loadTree(ctx context.Context) error {
	return ds.loadGroup(ctx, ds.root)
}

func (ds *Dataset) loadGroup(ctx context.Context, g *Group) error {
	meta, err := ds.loadMeta(ctx, g.loc())
	if err != nil {
		return err
	}
	if meta != nil {
		for _, dm := range meta.Dims {
			d := &Dimension{
				hdr:       nameindex.Header{Sort: nameindex.SortDimension, ID: g.dims.Len(), Name: dm.Name},
				g:         g,
				length:    dm.Len,
				unlimited: dm.Unlimited,
			}
			g.dims.Add(d)
		}
		for _, tm := range meta.Types {
			if err := ds.loadType(g, tm); err != nil {
				return err
			}
		}
		for _, name := range meta.Vars {
			if err := ds.loadVar(ctx, g, name); err != nil {
				return err
			}
		}
	}
	if err := ds.loadAttrs(ctx, g.loc(), &g.atts, meta); err != nil {
		return err
	}
	g.created = true

	if meta != nil {
		for _, name := range meta.Groups {
			child := newGroup(ds, g, name, g.groups.Len())
			g.groups.Add(child)
			if err := ds.loadGroup(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ds *Dataset) loadType(g *Group, tm typeMeta) error {
	id := dtype.ID(tm.ID)
	if !dtype.IsUser(id) {
		return fmt.Errorf("%w: persisted type %q has atomic id %d", ErrBadType, tm.Name, tm.ID)
	}
	if _, dup := ds.types[id]; dup {
		return fmt.Errorf("%w: persisted type id %d defined twice", ErrBadType, tm.ID)
	}
	t := &UserType{
		hdr:   nameindex.Header{Sort: nameindex.SortType, ID: g.types.Len(), Name: tm.Name},
		g:     g,
		id:    id,
		class: dtype.Class(tm.Class),
		size:  tm.Size,
		base:  dtype.ID(tm.Base),
	}
	for _, mem := range tm.Members {
		t.members = append(t.members, EnumMember{Name: mem.Name, Value: mem.Value})
	}
	for _, f := range tm.Fields {
		t.fields = append(t.fields, CompoundField{Name: f.Name, Type: dtype.ID(f.Type), Offset: f.Offset})
	}
	g.types.Add(t)
	ds.types[id] = t
	if id >= ds.nextTypeID {
		ds.nextTypeID = id + 1
	}
	return nil
}

func (ds *Dataset) loadVar(ctx context.Context, g *Group, name string) error {
	loc := g.loc().WithVar(name)
	meta, err := ds.loadMeta(ctx, loc)
	if err != nil {
		return err
	}
	v := &Variable{
		hdr:     nameindex.Header{Sort: nameindex.SortVariable, ID: g.vars.Len(), Name: name},
		g:       g,
		atts:    newAttrSet(0),
		created: true,
	}
	if meta != nil && meta.Var != nil {
		v.typ = dtype.ID(meta.Var.Type)
		v.written = meta.Var.Written
		for _, dname := range meta.Var.Dims {
			d, err := g.FindDim(dname)
			if err != nil {
				return fmt.Errorf("variable %q at %s: %w", name, g.loc(), err)
			}
			v.dims = append(v.dims, d)
		}
	}
	if err := ds.loadAttrs(ctx, loc, &v.atts, meta); err != nil {
		return err
	}
	g.vars.Add(v)
	return nil
}

// loadAttrs populates an attribute set from the store: first the names the
// metadata object lists, in index order, then any foreign blobs the listing
// found, in lexical order.
func (ds *Dataset) loadAttrs(ctx context.Context, loc storage.Location, set *attrSet, meta *containerMeta) error {
	listed, err := ds.store.ListAttributes(ctx, loc)
	if err != nil {
		return &StoreError{Op: "list attributes", Loc: loc, cause: err}
	}
	seen := make(map[string]bool, len(listed))
	order := make([]string, 0, len(listed))
	if meta != nil {
		for _, name := range meta.AttrOrder {
			order = append(order, name)
			seen[name] = true
		}
	}
	for _, name := range listed {
		if name == metaAttrName || seen[name] {
			continue
		}
		order = append(order, name)
	}

	for _, name := range order {
		blob, err := ds.store.GetAttribute(ctx, loc, name)
		if err != nil {
			// The metadata object may list an attribute whose blob is
			// gone; the survivors still load.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return &StoreError{Op: "get attribute", Loc: loc, cause: err}
		}
		rec, err := ds.codec.Decode(blob)
		if err != nil {
			return fmt.Errorf("attribute %q at %s: %w", name, loc, err)
		}
		a := &attr{
			hdr:     nameindex.Header{Name: name},
			ftype:   rec.Type,
			n:       rec.N,
			created: true,
			data:    payloadFromRecord(rec),
		}
		set.add(a)
	}
	return nil
}

func payloadFromRecord(rec *codec.Record) payload {
	switch rec.Class {
	case dtype.ClassVLen:
		return vlenPayload(rec.VLens)
	case dtype.ClassString:
		return stringPayload(rec.Strings)
	default:
		return flatPayload(rec.Bytes)
	}
}
