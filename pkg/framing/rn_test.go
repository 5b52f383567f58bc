package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNRoundTrip(t *testing.T) {
	frame := encodeRN(nil, []byte("GET,3"))
	assert.Equal(t, []byte("GET,3\r\n"), frame)

	d := newRNDecoder(64)
	got := decodeAll(t, d, frame)
	require.Len(t, got, 1)
	assert.Equal(t, "GET,3", string(got[0]))
}

func TestRNIgnoresLoneCR(t *testing.T) {
	d := newRNDecoder(64)
	got := decodeAll(t, d, []byte("a\rb\r\n"))
	require.Len(t, got, 1)
	assert.Equal(t, "a\rb", string(got[0]))
}

func TestRNMultipleCommandsInStream(t *testing.T) {
	d := newRNDecoder(64)
	stream := append(encodeRN(nil, []byte("ONE")), encodeRN(nil, []byte("TWO"))...)
	got := decodeAll(t, d, stream)
	require.Len(t, got, 2)
	assert.Equal(t, "ONE", string(got[0]))
	assert.Equal(t, "TWO", string(got[1]))
}

func TestRNOverrunResets(t *testing.T) {
	d := newRNDecoder(4)
	var got [][]byte
	for _, b := range []byte("toolongcommand\r\nok\r\n") {
		if n := d.FeedByte(b); n != 0 {
			if n == cap(d.out)+1 {
				continue // overrun signal, not a message
			}
			out := make([]byte, n)
			copy(out, d.Bytes())
			got = append(got, out)
		}
	}
	require.Len(t, got, 1)
	assert.Equal(t, "ok", string(got[0]))
}
