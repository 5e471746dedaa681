// Package dtype defines the type identifiers shared by every layer of the
// gridgo container format: the attribute engine, the conversion engine, the
// payload codecs and the metadata inspector.
//
// Atomic identifiers are stable wire values. User-defined identifiers start
// at FirstUserID and are assigned densely by the owning dataset; their class
// and size live in the dataset's type registry, not here.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ID identifies a gridgo data type.
type ID uint32

const (
	// Native is a request-side sentinel meaning "use the stored type".
	// It never appears as the stored type of an attribute or variable.
	Native ID = iota
	Byte
	Char
	Short
	Int
	Float
	Double
	UByte
	UShort
	UInt
	Int64
	UInt64
	String

	// FirstUserID is the first identifier available to user-defined types.
	FirstUserID ID = 32
)

// Class groups types by their payload representation.
type Class uint8

const (
	ClassInvalid Class = iota
	ClassNumeric
	ClassText
	ClassString
	ClassVLen
	ClassOpaque
	ClassEnum
	ClassCompound
)

// String returns the string representation of the Class.
func (c Class) String() string {
	switch c {
	case ClassNumeric:
		return "Numeric"
	case ClassText:
		return "Text"
	case ClassString:
		return "String"
	case ClassVLen:
		return "VLen"
	case ClassOpaque:
		return "Opaque"
	case ClassEnum:
		return "Enum"
	case ClassCompound:
		return "Compound"
	default:
		return "Invalid"
	}
}

// String returns the canonical lower-case name of an atomic ID.
func (id ID) String() string {
	switch id {
	case Native:
		return "native"
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case UByte:
		return "ubyte"
	case UShort:
		return "ushort"
	case UInt:
		return "uint"
	case Int64:
		return "int64"
	case UInt64:
		return "uint64"
	case String:
		return "string"
	default:
		return fmt.Sprintf("usertype(%d)", uint32(id))
	}
}

// FromName resolves a canonical atomic type name. It is the inverse of
// ID.String for atomic identifiers.
func FromName(name string) (ID, bool) {
	for id := Byte; id <= String; id++ {
		if id.String() == name {
			return id, true
		}
	}
	return Native, false
}

// stringDescriptorSize is the per-element footprint charged for string
// payloads. String elements are held out of line; this figure only feeds
// byte-footprint accounting, never buffer sizing.
const stringDescriptorSize = 16

// Size returns the in-memory element size in bytes of an atomic ID.
// User-defined identifiers return 0; their size is owned by the dataset's
// type registry.
func Size(id ID) int {
	switch id {
	case Byte, Char, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Double, Int64, UInt64:
		return 8
	case String:
		return stringDescriptorSize
	default:
		return 0
	}
}

// ClassOf classifies an atomic ID. User-defined identifiers return
// ClassInvalid; ask the dataset's type registry instead.
func ClassOf(id ID) Class {
	switch id {
	case Byte, Short, Int, Float, Double, UByte, UShort, UInt, Int64, UInt64:
		return ClassNumeric
	case Char:
		return ClassText
	case String:
		return ClassString
	default:
		return ClassInvalid
	}
}

// IsAtomic reports whether id is one of the predeclared atomic types.
func IsAtomic(id ID) bool {
	return id >= Byte && id <= String
}

// IsUser reports whether id belongs to the user-defined range.
func IsUser(id ID) bool {
	return id >= FirstUserID
}

// IsNumeric reports whether id is an atomic numeric type.
func IsNumeric(id ID) bool {
	return ClassOf(id) == ClassNumeric
}

// IsInteger reports whether id is an atomic integer type.
func IsInteger(id ID) bool {
	switch id {
	case Byte, Short, Int, UByte, UShort, UInt, Int64, UInt64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether id is an atomic floating-point type.
func IsFloat(id ID) bool {
	return id == Float || id == Double
}

// IsClassic reports whether id belongs to the classic-era type set. Datasets
// opened under the classic model accept only these as stored types.
func IsClassic(id ID) bool {
	return id >= Byte && id <= Double
}

// Default fill sentinels. Variables without an explicit fill attribute
// report these through Variable.FillValue.
const (
	FillByte   int8    = -127
	FillChar   byte    = 0
	FillShort  int16   = -32767
	FillInt    int32   = -2147483647
	FillFloat  float32 = 9.9692099683868690e+36
	FillDouble float64 = 9.9692099683868690e+36
	FillUByte  uint8   = 255
	FillUShort uint16  = 65535
	FillUInt   uint32  = 4294967295
	FillInt64  int64   = -9223372036854775806
	FillUInt64 uint64  = 18446744073709551614
)

// DefaultFill returns the little-endian encoding of the default fill
// sentinel for an atomic numeric or text type. It returns nil for String,
// Native and user-defined identifiers.
func DefaultFill(id ID) []byte {
	switch id {
	case Byte:
		v := FillByte
		return []byte{byte(v)}
	case Char:
		return []byte{FillChar}
	case UByte:
		return []byte{FillUByte}
	case Short:
		v := FillShort
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	case UShort:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, FillUShort)
		return b
	case Int:
		v := FillInt
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	case UInt:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, FillUInt)
		return b
	case Float:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(FillFloat))
		return b
	case Int64:
		v := FillInt64
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return b
	case UInt64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, FillUInt64)
		return b
	case Double:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(FillDouble))
		return b
	default:
		return nil
	}
}
