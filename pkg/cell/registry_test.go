package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryStrobeLength(t *testing.T) {
	r := NewRegistry()
	var x uint16 = 0xABCD
	var y [3]float32

	idxX, err := r.Register(New("x", "", KindUint, 2, 1, BindUint16([]uint16{x}), true, false, nil, 0))
	require.NoError(t, err)
	idxY, err := r.Register(New("y", "m/s", KindFloat, 4, 3, BindFloat32(y[:]), false, true, nil, 0))
	require.NoError(t, err)

	require.Equal(t, 0, idxX)
	require.Equal(t, 1, idxY)
	require.Equal(t, 2, r.Count())

	// y is permanently enabled, x is not enabled by default.
	assert.Equal(t, 12, r.StrobeLength())

	r.At(idxX).SetEnabled(true)
	assert.Equal(t, 14, r.StrobeLength())

	cellY, offset, err := r.Seek(idxY)
	require.NoError(t, err)
	assert.Equal(t, 2, offset) // x (2 bytes) precedes y once enabled
	assert.Equal(t, "y", cellY.Name)

	_, _, err = r.Seek(5)
	assert.Error(t, err)
}

func TestRegisterRejectsUnboundCell(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(New("hole", "", KindUint, 2, 1, Binding{}, false, false, nil, 0))
	assert.Error(t, err)
	assert.Equal(t, 0, r.Count())
}

func TestCellWriteValidatorRejection(t *testing.T) {
	var v uint32
	rejectAll := func([]byte) bool { return false }
	c := New("v", "", KindUint, 4, 1, BindUint32([]uint32{v}), true, false, rejectAll, 0)

	buf := make([]byte, 4)
	buf[0] = 0x42
	accepted, err := c.Set(buf)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestCellRoundTrip(t *testing.T) {
	backing := make([]int16, 2)
	c := New("p", "", KindInt, 2, 2, BindInt16(backing), true, false, nil, 0)

	in := []byte{0xD2, 0x04, 0x2E, 0xFB} // 1234, -1234 little endian
	accepted, err := c.Set(in)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, int16(1234), backing[0])
	assert.Equal(t, int16(-1234), backing[1])

	out := make([]byte, 4)
	c.Get(out)
	assert.Equal(t, in, out)
}
