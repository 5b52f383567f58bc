package host

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasso-embedded/host/pkg/cell"
	"github.com/lasso-embedded/host/pkg/framing"
)

// fakeComm is a minimal Callbacks implementation that records every
// frame handed to ComSend.
type fakeComm struct {
	NopCallbacks
	sent     [][]byte
	busy     int
	controls [][]byte
}

func (f *fakeComm) Controls(data []byte) {
	f.controls = append(f.controls, append([]byte(nil), data...))
}

func (f *fakeComm) ComSend(data []byte) error {
	if f.busy > 0 {
		f.busy--
		return ErrEBUSY
	}
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

// lastText strips the trailing "\r\n" RN framing from the most
// recently sent frame and returns it as a string.
func (f *fakeComm) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	b := f.sent[len(f.sent)-1]
	if len(b) >= 2 && b[len(b)-2] == '\r' && b[len(b)-1] == '\n' {
		b = b[:len(b)-2]
	}
	return string(b)
}

func send(t *testing.T, h *Host, line string) {
	t.Helper()
	for i := 0; i < len(line); i++ {
		h.ReceiveByte(line[i])
	}
}

// newTestHost builds the reference end-to-end setup:
// ASCII + RN encoding, tick = 10ms, baud = 115200, buffers = 32/96,
// with a single writable uint16 cell x = 0xABCD.
func newTestHost(t *testing.T) (*Host, *fakeComm, *cell.Registry) {
	t.Helper()
	reg := cell.NewRegistry()
	x := []uint16{0xABCD}
	_, err := reg.Register(cell.New("x", "", cell.KindUint, 2, 1, cell.BindUint16(x), true, false, nil, 1))
	require.NoError(t, err)

	cfg := validConfigRN()
	cb := &fakeComm{}
	h, err := NewHost(cfg, reg, cb)
	require.NoError(t, err)
	return h, cb, reg
}

// contains reports whether any recorded frame equals text once its RN
// framing is stripped.
func contains(cb *fakeComm, text string) bool {
	for _, frame := range cb.sent {
		b := frame
		if len(b) >= 2 && b[len(b)-2] == '\r' && b[len(b)-1] == '\n' {
			b = b[:len(b)-2]
		}
		if string(b) == text {
			return true
		}
	}
	return false
}

// runUntilResponse ticks HandleCom enough times for a completed
// request to clear the response-latency countdown and reach the pump.
func runUntilResponse(t *testing.T, h *Host, cb *fakeComm, cfg Config) {
	t.Helper()
	before := len(cb.sent)
	for i := 0; i < cfg.ResponseLatencyTicks+1; i++ {
		require.NoError(t, h.HandleCom())
	}
	require.Greater(t, len(cb.sent), before, "expected a response frame to be sent")
}

func TestDiscoveryProtocolInfo(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "i\r\n")
	runUntilResponse(t, h, cb, cfg)

	word := PackProtocolInfo(cfg)
	want := "i" + strconv.FormatInt(int64(word), 10) + ",v0.0,0"
	assert.Equal(t, want, cb.lastText())
}

func TestCellCount(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "n\r\n")
	runUntilResponse(t, h, cb, cfg)

	assert.Equal(t, "n1,0", cb.lastText())
}

func TestCellParams(t *testing.T) {
	h, cb, reg := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "p0\r\n")
	runUntilResponse(t, h, cb, cfg)

	c := reg.At(0)
	want := "px," + strconv.FormatInt(int64(c.Type), 10) + ",1,,1,0,0"
	assert.Equal(t, want, cb.lastText())
}

func TestCellValueRead(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "v0\r\n")
	runUntilResponse(t, h, cb, cfg)

	assert.Equal(t, "v43981,0", cb.lastText())
}

func TestCellValueWrite(t *testing.T) {
	h, cb, reg := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "V0,1234\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.Equal(t, "V0", cb.lastText())

	raw := make([]byte, 2)
	reg.At(0).Get(raw)
	assert.EqualValues(t, 1234, uint16(raw[0])|uint16(raw[1])<<8)

	send(t, h, "v0\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.Equal(t, "v1234,0", cb.lastText())
}

func TestUnknownOpcode(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "Z\r\n")
	runUntilResponse(t, h, cb, cfg)

	assert.Equal(t, "Z95", cb.lastText())
}

// TestStrobingEndToEnd enables the cell's strobe
// membership, turning on dataspace strobing, and setting a period all
// via the command channel, then observing x's bit pattern appear on
// the wire once sampling resumes. With RN commands the strobe encoding
// is NONE, so the P acknowledgement issued while strobing is
// suppressed even though the period still changes.
func TestStrobingEndToEnd(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "S0,1\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.Equal(t, "S0", cb.lastText())

	send(t, h, "W,1\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.True(t, contains(cb, "W0"), "dataspace-strobe ACK precedes the first sample")
	require.True(t, h.scheduler.Strobing())

	send(t, h, "P,20\r\n")
	before := len(cb.sent)
	for i := 0; i < cfg.ResponseLatencyTicks+1; i++ {
		require.NoError(t, h.HandleCom())
	}
	assert.EqualValues(t, 20, h.scheduler.Period())
	for _, frame := range cb.sent[before:] {
		assert.NotEqual(t, byte('P'), frame[0], "period ACK must be suppressed while strobing with NONE strobe encoding")
	}

	// Run one full period at the new rate so at least one sample lands
	// on the wire, then scan for x's little-endian bit pattern.
	for i := 0; i < 21; i++ {
		require.NoError(t, h.HandleCom())
	}
	found := false
	for _, frame := range cb.sent {
		if len(frame) == 2 && frame[0] == 0xCD && frame[1] == 0xAB {
			found = true
		}
	}
	assert.True(t, found, "expected x's little-endian bit pattern 0xABCD in a strobe frame")
}

func TestWriteToReadOnlyCellDenied(t *testing.T) {
	reg := cell.NewRegistry()
	v := []uint16{1}
	_, err := reg.Register(cell.New("ro", "", cell.KindUint, 2, 1, cell.BindUint16(v), false, false, nil, 0))
	require.NoError(t, err)

	cfg := validConfigRN()
	cb := &fakeComm{}
	h, err := NewHost(cfg, reg, cb)
	require.NoError(t, err)

	send(t, h, "V0,7\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.Equal(t, "V"+strconv.Itoa(int(ErrEACCES)), cb.lastText())
	assert.EqualValues(t, 1, v[0], "write must not reach cell memory")
}

func TestReceiveTimeoutDropsPartialFrame(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "v0") // no trailing \r\n: frame stays incomplete
	for i := 0; i < cfg.CommandTimeoutTicks+1; i++ {
		require.NoError(t, h.HandleCom())
	}
	require.Equal(t, stateIdle, h.recvState)

	send(t, h, "v0\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.Equal(t, "v43981,0", cb.lastText())
}

func TestAdvertisingStopsOnFirstCommand(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()
	require.True(t, h.advertising)

	send(t, h, "n\r\n")
	runUntilResponse(t, h, cb, cfg)
	assert.False(t, h.advertising)
}

func TestAdvertisementSignatureCadence(t *testing.T) {
	h, cb, _ := newTestHost(t)
	period := int(AdvertisePeriodTicks(10))

	require.NoError(t, h.HandleCom()) // underflow from zero fires immediately
	first := len(cb.sent)
	require.Greater(t, first, 0)

	for i := 0; i < period-1; i++ {
		require.NoError(t, h.HandleCom())
	}
	assert.Equal(t, first, len(cb.sent), "no second signature before the next period elapses")

	require.NoError(t, h.HandleCom())
	assert.Greater(t, len(cb.sent), first)

	sig := cb.sent[0]
	require.Len(t, sig, 16)
	assert.Equal(t, "lassoHost/", string(sig[:10]))
	assert.Equal(t, byte('\r'), sig[14])
	assert.Equal(t, byte('\n'), sig[15])
}

// TestOverdriveSkipsSampleUntilDrained stalls the sink so the first
// strobe chunk is still queued at the next sample instant; that
// instant is skipped and overdrive is raised, and once the backlog
// drains sampling resumes.
func TestOverdriveSkipsSampleUntilDrained(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "S0,1\r\n")
	runUntilResponse(t, h, cb, cfg)
	send(t, h, "W1\r\n")
	runUntilResponse(t, h, cb, cfg)

	period := int(h.scheduler.Period())

	// Stall the sink so the next sample's chunk never drains, then run
	// a full period so a second sample instant arrives while the first
	// is still queued.
	cb.busy = 1 << 30
	for i := 0; i < period; i++ {
		require.NoError(t, h.HandleCom())
	}
	require.Greater(t, h.pump.StrobeBacklog(), 0, "stalled chunk should still be queued")

	for i := 0; i < period; i++ {
		require.NoError(t, h.HandleCom())
	}
	assert.True(t, h.scheduler.Overdrive(), "second sample instant should be skipped while backlog remains")

	cb.busy = 0
	for i := 0; i < period*2; i++ {
		require.NoError(t, h.HandleCom())
	}
	assert.False(t, h.scheduler.Overdrive(), "overdrive clears once the backlog drains and sampling resumes")
}

// SET_ADVERTISE never produces a wire response, even though it still
// takes effect: advertising resumes and strobing stops.
func TestSetAdvertiseIsSilent(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "S0,1\r\n")
	runUntilResponse(t, h, cb, cfg)
	send(t, h, "W1\r\n")
	runUntilResponse(t, h, cb, cfg)
	require.True(t, h.scheduler.Strobing())

	before := len(cb.sent)
	send(t, h, "A\r\n")
	for i := 0; i < cfg.ResponseLatencyTicks+2; i++ {
		require.NoError(t, h.HandleCom())
	}
	assert.False(t, h.scheduler.Strobing())
	assert.True(t, h.advertising)
	for _, frame := range cb.sent[before:] {
		assert.NotEqual(t, byte('A'), frame[0], "SET_ADVERTISE must never produce a wire response")
	}
}

// SET_CELL_STROBE produces no response at all while strobing is on.
func TestSetCellStrobeRejectedSilentlyWhileStrobing(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "S0,1\r\n")
	runUntilResponse(t, h, cb, cfg)
	send(t, h, "W1\r\n")
	runUntilResponse(t, h, cb, cfg)
	require.True(t, h.scheduler.Strobing())

	before := len(cb.sent)
	send(t, h, "S0,0\r\n")
	for i := 0; i < cfg.ResponseLatencyTicks+2; i++ {
		require.NoError(t, h.HandleCom())
	}
	for _, frame := range cb.sent[before:] {
		assert.NotEqual(t, byte('S'), frame[0], "SET_CELL_STROBE must stay silent while strobing")
	}
}

func TestFramingRequiresNoneStrobeForRN(t *testing.T) {
	cfg := validConfigRN()
	cfg.StrobeEncoding = framing.RN
	require.Error(t, cfg.Validate())
}

// With TimestampEnable set, NewHost appends a permanently
// enabled uint64 cell that advances once per tick.
func TestTimestampCellAutoRegistered(t *testing.T) {
	reg := cell.NewRegistry()
	cfg := validConfigRN()
	cfg.TimestampEnable = true
	h, err := NewHost(cfg, reg, &fakeComm{})
	require.NoError(t, err)

	require.Equal(t, 1, reg.Count())
	ts := reg.At(0)
	assert.Equal(t, "timestamp", ts.Name)
	assert.True(t, ts.Enabled())
	assert.True(t, ts.Permanent())
	assert.False(t, ts.Writable())

	for i := 0; i < 5; i++ {
		require.NoError(t, h.HandleCom())
	}
	assert.EqualValues(t, 5, h.Timestamp())

	raw := make([]byte, 8)
	ts.Get(raw)
	assert.EqualValues(t, 5, raw[0], "cell borrows the live counter")
}

func TestGetTimingInfoReply(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	send(t, h, "t\r\n")
	runUntilResponse(t, h, cb, cfg)

	text := cb.lastText()
	require.True(t, strings.HasPrefix(text, "t"))
	fields := strings.Split(text[1:], ",")
	require.Len(t, fields, 8) // seven timing fields plus the error code
	assert.Equal(t, "10", fields[0], "tick_ms")
	assert.Equal(t, "50", fields[1], "command_timeout_ticks")
	assert.Equal(t, "1", fields[3], "period_min")
	assert.Equal(t, "1000", fields[4], "period_max")
	assert.Equal(t, "20", fields[5], "period_now")
	assert.Equal(t, "0", fields[7], "err")
}

// TestControlsFrameBypassesInterpreter exercises the reserved 0xC1
// opcode: the raw payload reaches the Controls callback and
// no response is produced.
func TestControlsFrameBypassesInterpreter(t *testing.T) {
	h, cb, _ := newTestHost(t)
	cfg := validConfigRN()

	// Let the initial advertisement drain so the frame count below only
	// reflects command handling.
	require.NoError(t, h.HandleCom())

	send(t, h, string([]byte{0xC1, 0x07, 0x09})+"\r\n")
	before := len(cb.sent)
	for i := 0; i < cfg.ResponseLatencyTicks+2; i++ {
		require.NoError(t, h.HandleCom())
	}

	require.Len(t, cb.controls, 1)
	assert.Equal(t, []byte{0x07, 0x09}, cb.controls[0])
	assert.Equal(t, before, len(cb.sent), "controls frames produce no response")
}

func TestReceiveByteReportsOverflow(t *testing.T) {
	h, _, _ := newTestHost(t)
	cfg := validConfigRN()

	var overflowed bool
	for i := 0; i < cfg.RecvBufSize+1; i++ {
		if err := h.ReceiveByte('x'); err != nil {
			assert.Equal(t, error(ErrEOVERFLOW), err)
			overflowed = true
		}
	}
	require.True(t, overflowed, "filling the receive buffer past capacity must report EOVERFLOW")
	assert.Equal(t, stateIdle, h.recvState)
}
