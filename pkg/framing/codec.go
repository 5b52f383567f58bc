// Package framing implements the wire encodings: COBS,
// ESCS, and the degenerate CR/LF line encoding, each with an
// incremental feed-byte decoder and a whole-buffer encoder.
package framing

// Encoding identifies one of the wire framings.
type Encoding uint8

const (
	// None means strobes are sent unframed; only legal for the strobe
	// side. Responses are still framed with the command encoding.
	None Encoding = iota
	RN
	COBS
	ESCS
)

func (e Encoding) String() string {
	switch e {
	case None:
		return "none"
	case RN:
		return "rn"
	case COBS:
		return "cobs"
	case ESCS:
		return "escs"
	default:
		return "unknown"
	}
}

// MaxPayload returns the largest payload this encoding can frame in a
// single call to Encode, or -1 if unbounded (subject only to the
// caller's buffer size).
func (e Encoding) MaxPayload() int {
	if e == COBS {
		return 253
	}
	return -1
}

// Overhead returns the worst-case byte overhead Encode adds to a
// payload of length n.
func (e Encoding) Overhead(n int) int {
	switch e {
	case COBS:
		return 3
	case ESCS:
		return 2 + n // every payload byte could need escaping
	case RN:
		return 2
	default:
		return 0
	}
}

// Decoder is an incremental, byte-at-a-time frame decoder. FeedByte
// returns 0 while the frame is incomplete, the completed frame's
// length when a delimiter closes it, or capacity+1 on overrun; COBS
// and ESCS share the same contract. A closed zero-length COBS frame
// also returns 0, so it is not reported as a message. On a positive
// return, Bytes()
// holds the decoded payload until the next FeedByte call.
type Decoder interface {
	FeedByte(b byte) int
	Bytes() []byte
	Reset()
}

// NewDecoder returns a fresh Decoder for encoding e with the given
// destination capacity (the decoded-payload buffer size).
func NewDecoder(e Encoding, capacity int) Decoder {
	switch e {
	case COBS:
		return newCOBSDecoder(capacity)
	case ESCS:
		return newESCSDecoder(capacity)
	case RN:
		return newRNDecoder(capacity)
	default:
		return newRawDecoder(capacity)
	}
}

// Encode appends the framed encoding of payload to dst and returns the
// result. extended marks a COBS segment that is not the last of its
// logical message; it is ignored by ESCS and RN.
func Encode(e Encoding, dst, payload []byte, extended bool) []byte {
	switch e {
	case COBS:
		return encodeCOBS(dst, payload, extended)
	case ESCS:
		return encodeESCS(dst, payload)
	case RN:
		return encodeRN(dst, payload)
	default:
		return append(dst, payload...)
	}
}
