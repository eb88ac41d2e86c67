package nir

import "strconv"

type BlockID int32
type ValueID int32

const (
	NoBlockID BlockID = -1
	NoValueID ValueID = -1
)

func (id BlockID) String() string {
	if id == NoBlockID {
		return "bb?"
	}
	return "bb" + strconv.Itoa(int(id))
}

func (id ValueID) String() string {
	if id == NoValueID {
		return "v?"
	}
	return "v" + strconv.Itoa(int(id))
}

// Stamp is the result type of an operation.
type Stamp uint8

const (
	Void Stamp = iota
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Ptr
)

var stampNames = [...]string{
	Void: "void",
	Bool: "bool",
	I8:   "i8",
	I16:  "i16",
	I32:  "i32",
	I64:  "i64",
	U8:   "u8",
	U16:  "u16",
	U32:  "u32",
	U64:  "u64",
	F32:  "f32",
	F64:  "f64",
	Ptr:  "ptr",
}

func (s Stamp) String() string {
	if int(s) < len(stampNames) {
		return stampNames[s]
	}
	return "stamp(" + strconv.Itoa(int(s)) + ")"
}

// ParseStamp maps a stamp name back to its value.
func ParseStamp(name string) (Stamp, bool) {
	for i, n := range stampNames {
		if n == name {
			return Stamp(i), true //nolint:gosec // G115: bounded by stampNames length
		}
	}
	return Void, false
}

// Bits reports the width of integer, float and pointer stamps. Bool is 1.
func (s Stamp) Bits() int {
	switch s {
	case Bool:
		return 1
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32, F32:
		return 32
	case I64, U64, F64, Ptr:
		return 64
	default:
		return 0
	}
}

func (s Stamp) IsInt() bool {
	return s >= I8 && s <= U64
}

func (s Stamp) Signed() bool {
	return s >= I8 && s <= I64
}

func (s Stamp) IsFloat() bool {
	return s == F32 || s == F64
}

// Normalize truncates v to the stamp's width, sign- or zero-extending it back
// into the int64 bit pattern used by ConstInt.
func Normalize(s Stamp, v int64) int64 {
	switch s {
	case I8:
		return int64(int8(v))
	case I16:
		return int64(int16(v))
	case I32:
		return int64(int32(v))
	case U8:
		return int64(uint8(v))
	case U16:
		return int64(uint16(v))
	case U32:
		return int64(uint32(v))
	default:
		return v
	}
}
