// Package command implements the wire shape of the command channel:
// decoding a request line or MessagePack array into an opcode
// plus arguments, and formatting a reply in whichever processing mode
// is configured. Opcode dispatch itself (reading/writing cells,
// touching the strobe scheduler) belongs to the root host package,
// which is the only place that owns both the registry and the wire
// format together.
package command

import "fmt"

// Mode selects one of the two processing-mode serializations. Only
// one may be active for a given Host.
type Mode uint8

const (
	ASCII Mode = iota
	MsgPack
)

func (m Mode) String() string {
	switch m {
	case ASCII:
		return "ascii"
	case MsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("mode(%d)", m)
	}
}
