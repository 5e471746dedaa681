package dtype

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestSize(t *testing.T) {
	tests := []struct {
		id   ID
		want int
	}{
		{Byte, 1},
		{Char, 1},
		{UByte, 1},
		{Short, 2},
		{UShort, 2},
		{Int, 4},
		{UInt, 4},
		{Float, 4},
		{Double, 8},
		{Int64, 8},
		{UInt64, 8},
		{String, 16},
		{Native, 0},
		{FirstUserID, 0},
		{FirstUserID + 7, 0},
	}
	for _, tt := range tests {
		if got := Size(tt.id); got != tt.want {
			t.Errorf("Size(%s) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		id   ID
		want Class
	}{
		{Byte, ClassNumeric},
		{UInt64, ClassNumeric},
		{Float, ClassNumeric},
		{Char, ClassText},
		{String, ClassString},
		{Native, ClassInvalid},
		{FirstUserID, ClassInvalid},
	}
	for _, tt := range tests {
		if got := ClassOf(tt.id); got != tt.want {
			t.Errorf("ClassOf(%s) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestIsClassic(t *testing.T) {
	classic := []ID{Byte, Char, Short, Int, Float, Double}
	for _, id := range classic {
		if !IsClassic(id) {
			t.Errorf("IsClassic(%s) = false, want true", id)
		}
	}
	modern := []ID{Native, UByte, UShort, UInt, Int64, UInt64, String, FirstUserID}
	for _, id := range modern {
		if IsClassic(id) {
			t.Errorf("IsClassic(%s) = true, want false", id)
		}
	}
}

func TestIsInteger(t *testing.T) {
	ints := []ID{Byte, Short, Int, UByte, UShort, UInt, Int64, UInt64}
	for _, id := range ints {
		if !IsInteger(id) {
			t.Errorf("IsInteger(%s) = false, want true", id)
		}
	}
	nonInts := []ID{Char, Float, Double, String, Native}
	for _, id := range nonInts {
		if IsInteger(id) {
			t.Errorf("IsInteger(%s) = true, want false", id)
		}
	}
}

func TestFromName(t *testing.T) {
	for id := Byte; id <= String; id++ {
		got, ok := FromName(id.String())
		if !ok || got != id {
			t.Errorf("FromName(%q) = %s, %v", id.String(), got, ok)
		}
	}
	if _, ok := FromName("quaternion"); ok {
		t.Error("FromName accepted an unknown name")
	}
}

func TestDefaultFill(t *testing.T) {
	b := DefaultFill(Int)
	if len(b) != 4 {
		t.Fatalf("DefaultFill(Int) length = %d, want 4", len(b))
	}
	if got := int32(binary.LittleEndian.Uint32(b)); got != FillInt {
		t.Errorf("DefaultFill(Int) = %d, want %d", got, FillInt)
	}

	d := DefaultFill(Double)
	if got := math.Float64frombits(binary.LittleEndian.Uint64(d)); got != FillDouble {
		t.Errorf("DefaultFill(Double) = %g, want %g", got, FillDouble)
	}

	// The negative sentinels must survive the trip through their unsigned
	// wire form.
	if got := int8(DefaultFill(Byte)[0]); got != FillByte {
		t.Errorf("DefaultFill(Byte) = %d, want %d", got, FillByte)
	}
	if got := int16(binary.LittleEndian.Uint16(DefaultFill(Short))); got != FillShort {
		t.Errorf("DefaultFill(Short) = %d, want %d", got, FillShort)
	}
	if got := int64(binary.LittleEndian.Uint64(DefaultFill(Int64))); got != FillInt64 {
		t.Errorf("DefaultFill(Int64) = %d, want %d", got, FillInt64)
	}

	if DefaultFill(String) != nil {
		t.Error("DefaultFill(String) should be nil")
	}
	if DefaultFill(FirstUserID) != nil {
		t.Error("DefaultFill(user type) should be nil")
	}
}
