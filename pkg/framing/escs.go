package framing

const (
	escsDelimiter byte = 0x7E
	escsEscape    byte = 0x7D
	escsXor       byte = 0x20
)

// encodeESCS frames 0x7E-delimited payloads: 0x7D escapes itself
// and 0x7E as a two-byte sequence `0x7D, byte^0x20`.
func encodeESCS(dst, payload []byte) []byte {
	dst = append(dst, escsDelimiter)
	for _, b := range payload {
		if b == escsDelimiter || b == escsEscape {
			dst = append(dst, escsEscape, b^escsXor)
		} else {
			dst = append(dst, b)
		}
	}
	dst = append(dst, escsDelimiter)
	return dst
}

type escsDecoder struct {
	out       []byte
	open      bool
	escaped   bool
	resyncing bool
}

func newESCSDecoder(capacity int) *escsDecoder {
	return &escsDecoder{out: make([]byte, 0, capacity)}
}

func (d *escsDecoder) Reset() {
	d.open = false
	d.escaped = false
	d.resyncing = false
	d.out = d.out[:0]
}

func (d *escsDecoder) Bytes() []byte { return d.out }

func (d *escsDecoder) FeedByte(b byte) int {
	if d.escaped {
		d.escaped = false
		return d.appendByte(b ^ escsXor)
	}
	if b == escsDelimiter {
		if d.resyncing {
			// This delimiter only closes the broken frame; the next
			// one, if any, opens the following frame.
			d.resyncing = false
			return 0
		}
		if !d.open {
			d.open = true
			d.out = d.out[:0]
			return 0
		}
		length := len(d.out)
		d.open = false
		if length == 0 {
			// A zero-length frame is skipped: this delimiter
			// did not open a fresh frame, the next one will.
			return 0
		}
		return length
	}
	if d.resyncing || !d.open {
		return 0
	}
	if b == escsEscape {
		d.escaped = true
		return 0
	}
	return d.appendByte(b)
}

func (d *escsDecoder) appendByte(b byte) int {
	if len(d.out) >= cap(d.out) {
		d.open = false
		d.resyncing = true
		return cap(d.out) + 1
	}
	d.out = append(d.out, b)
	return 0
}
