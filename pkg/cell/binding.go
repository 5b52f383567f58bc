package cell

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Binding is a narrow typed-region handle over application memory in
// place of a raw pointer: it borrows the memory for sampling
// and for client reads/writes without ever exposing the underlying
// address to the registry.
type Binding struct {
	read  func(dst []byte)
	write func(src []byte) error
}

func (b Binding) Read(dst []byte) { b.read(dst) }

func (b Binding) Write(src []byte) error { return b.write(src) }

func checkLen(got, want int) error {
	if got != want {
		return fmt.Errorf("cell: expected %d bytes, got %d", want, got)
	}
	return nil
}

// BindBool borrows a single boolean.
func BindBool(v *bool) Binding {
	return Binding{
		read: func(dst []byte) {
			if *v {
				dst[0] = 1
			} else {
				dst[0] = 0
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), 1); err != nil {
				return err
			}
			*v = src[0] != 0
			return nil
		},
	}
}

// BindUint8 borrows a slice of 8-bit unsigned integers (count = len(v)).
func BindUint8(v []uint8) Binding {
	return Binding{
		read:  func(dst []byte) { copy(dst, v) },
		write: func(src []byte) error { return copyExact(v, src) },
	}
}

// BindUint16 borrows a slice of 16-bit unsigned integers.
func BindUint16(v []uint16) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint16(dst[i*2:], e)
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*2); err != nil {
				return err
			}
			for i := range v {
				v[i] = binary.LittleEndian.Uint16(src[i*2:])
			}
			return nil
		},
	}
}

// BindUint32 borrows a slice of 32-bit unsigned integers.
func BindUint32(v []uint32) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint32(dst[i*4:], e)
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*4); err != nil {
				return err
			}
			for i := range v {
				v[i] = binary.LittleEndian.Uint32(src[i*4:])
			}
			return nil
		},
	}
}

// BindUint64 borrows a slice of 64-bit unsigned integers.
func BindUint64(v []uint64) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint64(dst[i*8:], e)
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*8); err != nil {
				return err
			}
			for i := range v {
				v[i] = binary.LittleEndian.Uint64(src[i*8:])
			}
			return nil
		},
	}
}

// BindInt8 borrows a slice of 8-bit signed integers.
func BindInt8(v []int8) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				dst[i] = byte(e)
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)); err != nil {
				return err
			}
			for i := range v {
				v[i] = int8(src[i])
			}
			return nil
		},
	}
}

// BindInt16 borrows a slice of 16-bit signed integers.
func BindInt16(v []int16) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint16(dst[i*2:], uint16(e))
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*2); err != nil {
				return err
			}
			for i := range v {
				v[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
			}
			return nil
		},
	}
}

// BindInt32 borrows a slice of 32-bit signed integers.
func BindInt32(v []int32) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint32(dst[i*4:], uint32(e))
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*4); err != nil {
				return err
			}
			for i := range v {
				v[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
			}
			return nil
		},
	}
}

// BindInt64 borrows a slice of 64-bit signed integers.
func BindInt64(v []int64) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint64(dst[i*8:], uint64(e))
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*8); err != nil {
				return err
			}
			for i := range v {
				v[i] = int64(binary.LittleEndian.Uint64(src[i*8:]))
			}
			return nil
		},
	}
}

// BindFloat32 borrows a slice of 32-bit floats.
func BindFloat32(v []float32) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(e))
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*4); err != nil {
				return err
			}
			for i := range v {
				v[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
			}
			return nil
		},
	}
}

// BindFloat64 borrows a slice of 64-bit floats.
func BindFloat64(v []float64) Binding {
	return Binding{
		read: func(dst []byte) {
			for i, e := range v {
				binary.LittleEndian.PutUint64(dst[i*8:], math.Float64bits(e))
			}
		},
		write: func(src []byte) error {
			if err := checkLen(len(src), len(v)*8); err != nil {
				return err
			}
			for i := range v {
				v[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
			}
			return nil
		},
	}
}

// BindBytes borrows a fixed-size byte buffer, used for KindChar cells
// (raw byte arrays and nul-terminated strings).
func BindBytes(v []byte) Binding {
	return Binding{
		read:  func(dst []byte) { copy(dst, v) },
		write: func(src []byte) error { return copyExact(v, src) },
	}
}

func copyExact(dst, src []byte) error {
	if err := checkLen(len(src), len(dst)); err != nil {
		return err
	}
	copy(dst, src)
	return nil
}
