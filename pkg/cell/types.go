// Package cell implements the data cell registry: the
// ordered list of descriptors the host samples into strobes and the
// command interpreter reads and writes.
package cell

import "fmt"

// Kind is the base kind packed into a Cell's type code.
type Kind uint8

const (
	KindBool Kind = iota
	KindChar      // byte / string data, not numeric
	KindUint
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// TypeCode packs a cell's kind, element width, and flags into the
// 16-bit word reported by GET_CELL_PARAMS:
//
//	bits 0-2  Kind
//	bits 3-4  width code: 0=1, 1=2, 2=4, 3=8 bytes
//	bit  5    enabled in current strobe
//	bit  6    client-writable
//	bit  7    permanently enabled (cannot be disabled via SET_CELL_STROBE)
//
// The remaining bits are reserved and always zero.
type TypeCode uint16

const (
	tcKindMask    TypeCode = 0x7
	tcWidthShift           = 3
	tcWidthMask   TypeCode = 0x3 << tcWidthShift
	tcEnabledBit  TypeCode = 1 << 5
	tcWritableBit TypeCode = 1 << 6
	tcPermBit     TypeCode = 1 << 7
)

var widthCodes = [4]int{1, 2, 4, 8}

func widthToCode(width int) TypeCode {
	for code, w := range widthCodes {
		if w == width {
			return TypeCode(code)
		}
	}
	panic(fmt.Sprintf("cell: unsupported byte width %d", width))
}

// MakeTypeCode packs kind, width and the writable/permanent flags; a
// permanently enabled cell also gets the enabled bit. The enabled bit
// is otherwise changed later through withEnabled (Cell.SetEnabled).
func MakeTypeCode(kind Kind, width int, writable, permanentlyEnabled bool) TypeCode {
	tc := TypeCode(kind) | (widthToCode(width) << tcWidthShift)
	if writable {
		tc |= tcWritableBit
	}
	if permanentlyEnabled {
		tc |= tcPermBit | tcEnabledBit
	}
	return tc
}

func (tc TypeCode) Kind() Kind       { return Kind(tc & tcKindMask) }
func (tc TypeCode) Width() int       { return widthCodes[(tc&tcWidthMask)>>tcWidthShift] }
func (tc TypeCode) Enabled() bool    { return tc&tcEnabledBit != 0 }
func (tc TypeCode) Writable() bool   { return tc&tcWritableBit != 0 }
func (tc TypeCode) Permanent() bool  { return tc&tcPermBit != 0 }
func (tc TypeCode) withEnabled(v bool) TypeCode {
	if v {
		return tc | tcEnabledBit
	}
	return tc &^ tcEnabledBit
}
