package host

import (
	"encoding/binary"
	"math"

	"github.com/lasso-embedded/host/pkg/cell"
	"github.com/lasso-embedded/host/pkg/command"
)

// cellValueToWire reads a scalar cell's current value as a Go value
// ready for command.Reply.Fields, typed per the cell's kind. Only
// Count == 1 cells are supported: there is no wire shape for an array
// value in either processing mode.
func cellValueToWire(c *cell.Cell) (interface{}, Errno) {
	if c.Count != 1 {
		return nil, ErrENOTSUP
	}
	raw := make([]byte, c.ByteWidth())
	if len(raw) == 0 {
		raw = []byte{0}
	}
	c.Get(raw)

	switch c.Type.Kind() {
	case cell.KindBool:
		return raw[0] != 0, ErrNone
	case cell.KindChar:
		return string(raw), ErrNone
	case cell.KindUint:
		return decodeUint(raw), ErrNone
	case cell.KindInt:
		return decodeInt(raw), ErrNone
	case cell.KindFloat:
		return decodeFloat(raw), ErrNone
	default:
		return nil, ErrENOTSUP
	}
}

// wireValueToCellBytes converts a decoded command.Arg into the raw
// bytes a scalar cell's Binding expects, per its Kind/width.
func wireValueToCellBytes(c *cell.Cell, arg command.Arg) ([]byte, Errno) {
	if c.Count != 1 {
		return nil, ErrENOTSUP
	}
	width := c.ByteWidth()
	out := make([]byte, width)

	switch c.Type.Kind() {
	case cell.KindBool:
		n, err := arg.Int64()
		if err != nil {
			return nil, ErrEINVAL
		}
		if n != 0 {
			out[0] = 1
		}
		return out, ErrNone
	case cell.KindChar:
		b, err := arg.Bytes()
		if err != nil || len(b) != width {
			return nil, ErrEINVAL
		}
		return b, ErrNone
	case cell.KindUint:
		n, err := arg.Uint64()
		if err != nil {
			return nil, ErrEINVAL
		}
		encodeUint(out, n)
		return out, ErrNone
	case cell.KindInt:
		n, err := arg.Int64()
		if err != nil {
			return nil, ErrEINVAL
		}
		encodeInt(out, n)
		return out, ErrNone
	case cell.KindFloat:
		f, err := arg.Float64()
		if err != nil {
			return nil, ErrEINVAL
		}
		encodeFloat(out, f, width)
		return out, ErrNone
	default:
		return nil, ErrENOTSUP
	}
}

func decodeUint(raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw))
	case 8:
		return binary.LittleEndian.Uint64(raw)
	default:
		return 0
	}
}

func decodeInt(raw []byte) int64 {
	switch len(raw) {
	case 1:
		return int64(int8(raw[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(raw)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(raw)))
	case 8:
		return int64(binary.LittleEndian.Uint64(raw))
	default:
		return 0
	}
}

func decodeFloat(raw []byte) float64 {
	switch len(raw) {
	case 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	default:
		return 0
	}
}

func encodeUint(dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	}
}

func encodeInt(dst []byte, v int64) {
	encodeUint(dst, uint64(v))
}

func encodeFloat(dst []byte, v float64, width int) {
	switch width {
	case 4:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case 8:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	}
}
