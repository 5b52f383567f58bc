package command

import (
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lasso-embedded/host/pkg/errno"
)

// Reply builds one response: an opcode, zero or more typed fields, and
// a trailing error code.
type Reply struct {
	Op     Opcode
	Fields []interface{}
	Err    errno.Errno

	// Silent marks a dispatch result that must never reach the wire
	// (SET_ADVERTISE, or SET_CELL_STROBE rejected while strobing).
	// Encode is never called on these; the
	// caller checks Silent first and suppresses the response entirely.
	Silent bool
}

// Tiny builds an acknowledgement/error reply carrying no fields, only
// the opcode and error code: the tiny reply used for every
// acknowledgement and negative outcome.
func Tiny(op Opcode, err errno.Errno) Reply {
	return Reply{Op: op, Err: err}
}

// Mute builds a dispatch result that produces no wire response at all.
func Mute() Reply {
	return Reply{Silent: true}
}

// Encode formats r for the wire in the given processing mode. The
// result does not include framing (RN CR/LF, COBS/ESCS
// delimiters): that is pkg/framing's job, applied by the caller.
func Encode(mode Mode, r Reply) []byte {
	if mode == MsgPack {
		return encodeMsgPack(r)
	}
	return encodeASCII(r)
}

// encodeASCII writes the opcode as a literal character, then the
// comma-separated fields, finally the decimal error code. The
// first field follows the opcode directly (no leading comma); every
// field after it, including the error code, is comma-separated.
func encodeASCII(r Reply) []byte {
	parts := make([]string, 0, len(r.Fields)+1)
	for _, f := range r.Fields {
		parts = append(parts, asciiField(f))
	}
	parts = append(parts, strconv.FormatInt(int64(r.Err), 10))

	var b strings.Builder
	b.WriteByte(byte(r.Op))
	b.WriteString(strings.Join(parts, ","))
	return []byte(b.String())
}

func asciiField(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int:
		return strconv.Itoa(x)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// encodeMsgPack emits the 3-element [opcode, [payload…], err] array.
func encodeMsgPack(r Reply) []byte {
	frame := []interface{}{int64(r.Op), r.Fields, int64(r.Err)}
	out, err := msgpack.Marshal(frame)
	if err != nil {
		// Marshaling a fixed-shape array of primitives cannot fail in
		// practice; fall back to a tiny error-only frame rather than
		// panicking on the hot path.
		out, _ = msgpack.Marshal([]interface{}{int64(r.Op), []interface{}{}, int64(errno.ECANCELED)})
	}
	return out
}
