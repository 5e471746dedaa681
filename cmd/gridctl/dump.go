package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/hupe1980/gridgo"
	"github.com/hupe1980/gridgo/dtype"
)

// dump writes a CDL-flavored listing of the dataset's metadata tree.
func dump(ctx context.Context, w io.Writer, ds *gridgo.Dataset) error {
	m := ds.Manifest()
	fmt.Fprintf(w, "gridgo {\n")
	format := "native"
	if m.Classic {
		format = "classic"
	}
	fmt.Fprintf(w, "  // format: %s, codec: %s, seq: %d\n", format, m.Codec, m.Seq)
	if err := dumpGroup(ctx, w, ds, ds.Root(), "  "); err != nil {
		return err
	}
	fmt.Fprintln(w, "}")
	return nil
}

func dumpGroup(ctx context.Context, w io.Writer, ds *gridgo.Dataset, g *gridgo.Group, indent string) error {
	if dims := g.Dims(); len(dims) > 0 {
		fmt.Fprintf(w, "%sdimensions:\n", indent)
		for _, d := range dims {
			if d.Unlimited() {
				fmt.Fprintf(w, "%s  %s = UNLIMITED ; // (%d currently)\n", indent, d.Name(), d.Len())
			} else {
				fmt.Fprintf(w, "%s  %s = %d ;\n", indent, d.Name(), d.Len())
			}
		}
	}

	if types := g.Types(); len(types) > 0 {
		fmt.Fprintf(w, "%stypes:\n", indent)
		for _, t := range types {
			fmt.Fprintf(w, "%s  %s ;\n", indent, typeDecl(t))
		}
	}

	if vars := g.Vars(); len(vars) > 0 {
		fmt.Fprintf(w, "%svariables:\n", indent)
		for _, v := range vars {
			var axes []string
			for _, d := range v.Dims() {
				axes = append(axes, d.Name())
			}
			fmt.Fprintf(w, "%s  %s %s(%s) ;\n", indent, typeName(ds, v.Type()), v.Name(), strings.Join(axes, ", "))
			if err := dumpAttrs(ctx, w, ds, g, v.Sel(), v.Name(), indent+"    "); err != nil {
				return err
			}
		}
	}

	if n := g.NumAttrs(); n > 0 {
		fmt.Fprintf(w, "%s// %s attributes:\n", indent, groupLabel(g))
		if err := dumpAttrs(ctx, w, ds, g, gridgo.Global, "", indent+"  "); err != nil {
			return err
		}
	}

	for _, child := range g.Groups() {
		fmt.Fprintf(w, "%sgroup: %s {\n", indent, child.Name())
		if err := dumpGroup(ctx, w, ds, child, indent+"  "); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s}\n", indent)
	}
	return nil
}

func groupLabel(g *gridgo.Group) string {
	if g.IsRoot() {
		return "global"
	}
	return "group"
}

func dumpAttrs(ctx context.Context, w io.Writer, ds *gridgo.Dataset, g *gridgo.Group, sel gridgo.VarSel, owner, indent string) error {
	names, err := g.AttrNames(sel)
	if err != nil {
		return err
	}
	for _, name := range names {
		val, err := g.GetAttr(ctx, sel, name, dtype.Native)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		fmt.Fprintf(w, "%s%s:%s = %s ;\n", indent, owner, name, formatValue(ds, val))
	}
	return nil
}

func typeName(ds *gridgo.Dataset, id dtype.ID) string {
	if dtype.IsAtomic(id) {
		return id.String()
	}
	if t, err := ds.TypeByID(id); err == nil {
		return t.Name()
	}
	return id.String()
}

func typeDecl(t *gridgo.UserType) string {
	switch t.Class() {
	case dtype.ClassEnum:
		var members []string
		for _, m := range t.Members() {
			members = append(members, fmt.Sprintf("%s = %d", m.Name, m.Value))
		}
		return fmt.Sprintf("%s enum %s { %s }", t.Base(), t.Name(), strings.Join(members, ", "))
	case dtype.ClassOpaque:
		return fmt.Sprintf("opaque(%d) %s", t.Size(), t.Name())
	case dtype.ClassVLen:
		return fmt.Sprintf("%s(*) %s", t.Base(), t.Name())
	case dtype.ClassCompound:
		var fields []string
		for _, f := range t.Fields() {
			fields = append(fields, fmt.Sprintf("%s %s", f.Type, f.Name))
		}
		return fmt.Sprintf("compound %s { %s }", t.Name(), strings.Join(fields, " ; "))
	default:
		return t.Name()
	}
}

// formatValue renders an attribute payload as CDL-ish literals.
func formatValue(ds *gridgo.Dataset, val *gridgo.AttrValue) string {
	switch {
	case val.Strings != nil:
		parts := make([]string, len(val.Strings))
		for i, s := range val.Strings {
			if s == nil {
				parts[i] = "NIL"
			} else {
				parts[i] = fmt.Sprintf("%q", *s)
			}
		}
		return strings.Join(parts, ", ")
	case val.VLens != nil:
		base := vlenBase(ds, val.Type)
		parts := make([]string, len(val.VLens))
		for i, v := range val.VLens {
			parts[i] = "{" + formatFlat(ds, base, v) + "}"
		}
		return strings.Join(parts, ", ")
	default:
		return formatFlat(ds, val.Type, val.Bytes)
	}
}

func vlenBase(ds *gridgo.Dataset, id dtype.ID) dtype.ID {
	if t, err := ds.TypeByID(id); err == nil && t.Class() == dtype.ClassVLen {
		return t.Base()
	}
	return dtype.Byte
}

func formatFlat(ds *gridgo.Dataset, id dtype.ID, b []byte) string {
	if id == dtype.Char {
		return fmt.Sprintf("%q", string(b))
	}
	if !dtype.IsNumeric(id) {
		if t, err := ds.TypeByID(id); err == nil && t.Class() == dtype.ClassEnum {
			id = t.Base()
		} else {
			return "0x" + hex.EncodeToString(b)
		}
	}

	size := dtype.Size(id)
	if size == 0 || len(b)%size != 0 {
		return "0x" + hex.EncodeToString(b)
	}
	parts := make([]string, 0, len(b)/size)
	for off := 0; off+size <= len(b); off += size {
		parts = append(parts, formatScalar(id, b[off:off+size]))
	}
	return strings.Join(parts, ", ")
}

func formatScalar(id dtype.ID, b []byte) string {
	switch id {
	case dtype.Byte:
		return fmt.Sprintf("%db", int8(b[0]))
	case dtype.UByte:
		return fmt.Sprintf("%dub", b[0])
	case dtype.Short:
		return fmt.Sprintf("%ds", int16(binary.LittleEndian.Uint16(b)))
	case dtype.UShort:
		return fmt.Sprintf("%dus", binary.LittleEndian.Uint16(b))
	case dtype.Int:
		return fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(b)))
	case dtype.UInt:
		return fmt.Sprintf("%du", binary.LittleEndian.Uint32(b))
	case dtype.Int64:
		return fmt.Sprintf("%dll", int64(binary.LittleEndian.Uint64(b)))
	case dtype.UInt64:
		return fmt.Sprintf("%dull", binary.LittleEndian.Uint64(b))
	case dtype.Float:
		return fmt.Sprintf("%gf", math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case dtype.Double:
		return fmt.Sprintf("%g", math.Float64frombits(binary.LittleEndian.Uint64(b)))
	default:
		return "0x" + hex.EncodeToString(b)
	}
}
