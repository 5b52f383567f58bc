package strobe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasso-embedded/host/pkg/cell"
)

func newTestRegistry(t *testing.T) (*cell.Registry, *uint16) {
	t.Helper()
	r := cell.NewRegistry()
	v := []uint16{0xABCD}
	c := cell.New("x", "", cell.KindUint, 2, 1, cell.BindUint16(v), false, true, nil, 0)
	_, err := r.Register(c)
	require.NoError(t, err)
	return r, &v[0]
}

func TestSchedulerSamplesOnPeriod(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := New(r, Config{}, 3)
	s.SetStrobing(true)

	assert.Nil(t, s.Tick(0))
	assert.Nil(t, s.Tick(0))
	payload := s.Tick(0)
	require.NotNil(t, payload)
	assert.Equal(t, uint16(0xABCD), binary.LittleEndian.Uint16(payload))
}

func TestSchedulerSkipsWhenNotStrobing(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := New(r, Config{}, 1)
	assert.Nil(t, s.Tick(0))
}

func TestSchedulerOverdriveSkipsSample(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := New(r, Config{}, 1)
	s.SetStrobing(true)

	payload := s.Tick(5) // backlog still outstanding
	assert.Nil(t, payload)
	assert.True(t, s.Overdrive())

	payload = s.Tick(0)
	assert.NotNil(t, payload)
	assert.False(t, s.Overdrive())
}

func TestSchedulerArmImmediate(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := New(r, Config{}, 20)
	s.SetStrobing(true)
	s.ArmImmediate()
	assert.NotNil(t, s.Tick(0))
}

func TestSchedulerFramedPrependsMarker(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := New(r, Config{Framed: true}, 1)
	s.SetStrobing(true)
	payload := s.Tick(0)
	require.NotEmpty(t, payload)
	assert.Equal(t, byte(0xC1), payload[0])
}

func TestSchedulerDynamicMaskTracksDivider(t *testing.T) {
	r := cell.NewRegistry()
	fast := cell.New("fast", "", cell.KindUint, 1, 1, cell.BindUint8([]uint8{1}), false, true, nil, 1)
	slow := cell.New("slow", "", cell.KindUint, 1, 1, cell.BindUint8([]uint8{2}), false, true, nil, 2)
	_, err := r.Register(fast)
	require.NoError(t, err)
	_, err = r.Register(slow)
	require.NoError(t, err)

	s := New(r, Config{Dynamic: true}, 1)
	s.SetStrobing(true)

	first := s.Tick(0)
	require.NotEmpty(t, first)
	mask := first[0]
	assert.Equal(t, byte(0x01), mask&0x01, "fast cell sampled on first cycle")
	// slow has divider 2: samples every other cycle.
	_ = mask

	second := s.Tick(0)
	require.NotEmpty(t, second)
}

func TestSchedulerCRCAppended(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := New(r, Config{CRCEnabled: true, CRCWidth: 2}, 1)
	s.SetStrobing(true)
	payload := s.Tick(0)
	require.Len(t, payload, 2+2) // 2 bytes of cell data + 2 bytes CRC
}
