package command

import (
	"bytes"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lasso-embedded/host/pkg/errno"
)

// Arg is one decoded command argument, uniform across both processing
// modes: ASCII gives it a decimal token, MessagePack gives it
// an already-typed value. Callers coerce to whatever numeric kind the
// target cell or opcode expects.
type Arg struct {
	text  string
	val   interface{}
	ascii bool
}

func textArg(s string) Arg       { return Arg{text: s, ascii: true} }
func valueArg(v interface{}) Arg { return Arg{val: v} }

// Int64 coerces the argument to a signed integer.
func (a Arg) Int64() (int64, error) {
	if a.ascii {
		n, err := strconv.ParseInt(a.text, 10, 64)
		if err != nil {
			return 0, errno.EINVAL
		}
		return n, nil
	}
	switch v := a.val.(type) {
	case int64:
		return v, nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	}
	return 0, errno.EINVAL
}

// Uint64 coerces the argument to an unsigned integer.
func (a Arg) Uint64() (uint64, error) {
	n, err := a.Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errno.EINVAL
	}
	return uint64(n), nil
}

// Float64 coerces the argument to a floating-point value.
func (a Arg) Float64() (float64, error) {
	if a.ascii {
		f, err := strconv.ParseFloat(a.text, 64)
		if err != nil {
			return 0, errno.EINVAL
		}
		return f, nil
	}
	switch v := a.val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	default:
		n, err := a.Int64()
		return float64(n), err
	}
}

// Bytes coerces the argument to a raw byte string, used for KindChar
// cells.
func (a Arg) Bytes() ([]byte, error) {
	if a.ascii {
		return []byte(a.text), nil
	}
	switch v := a.val.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errno.EINVAL
}

// Request is a decoded command: an opcode plus its positional
// arguments.
type Request struct {
	Op   Opcode
	Args []Arg
}

// Decode parses a receive-buffer payload (framing already stripped)
// into a Request, per the processing mode.
func Decode(mode Mode, payload []byte) (Request, error) {
	if len(payload) == 0 {
		return Request{}, errno.EINVAL
	}
	if mode == MsgPack {
		return decodeMsgPack(payload)
	}
	return decodeASCII(payload)
}

// decodeASCII splits "<op><comma-separated args>" (no CR/LF: framing
// already stripped it). A comma directly after the opcode is
// tolerated as a bare separator before the first argument, so both
// "P20" and "P,20" carry one argument.
func decodeASCII(payload []byte) (Request, error) {
	op := Opcode(payload[0])
	rest := payload[1:]
	if len(rest) > 0 && rest[0] == ',' {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return Request{Op: op}, nil
	}
	fields := bytes.Split(rest, []byte(","))
	args := make([]Arg, len(fields))
	for i, f := range fields {
		args[i] = textArg(string(f))
	}
	return Request{Op: op, Args: args}, nil
}

// decodeMsgPack expects a 2-element array [opcode, [args...]].
func decodeMsgPack(payload []byte) (Request, error) {
	var frame []interface{}
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return Request{}, errno.EINVAL
	}
	if len(frame) != 2 {
		return Request{}, errno.EINVAL
	}
	opVal, err := valueArg(frame[0]).Int64()
	if err != nil {
		return Request{}, errno.EINVAL
	}
	rawArgs, ok := frame[1].([]interface{})
	if !ok {
		return Request{}, errno.EINVAL
	}
	args := make([]Arg, len(rawArgs))
	for i, v := range rawArgs {
		args[i] = valueArg(v)
	}
	return Request{Op: Opcode(opVal), Args: args}, nil
}
