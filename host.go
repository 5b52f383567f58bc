// Package host implements the core of a configurable, bidirectional
// data-server: a single-threaded cooperative state machine that fuses
// a strobe scheduler, a command interpreter, and a framing/encoding
// pipeline onto one byte-oriented serial link.
package host

import (
	"bytes"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lasso-embedded/host/internal/crc"
	"github.com/lasso-embedded/host/pkg/cell"
	"github.com/lasso-embedded/host/pkg/command"
	"github.com/lasso-embedded/host/pkg/framing"
	"github.com/lasso-embedded/host/pkg/strobe"
	"github.com/lasso-embedded/host/pkg/transport"
)

// receiverState tracks the receive side of the command channel:
// idle, buffering an incomplete frame, or holding a completed frame
// awaiting interpretation.
type receiverState uint8

const (
	stateIdle receiverState = iota
	stateBuffering
	stateReady
)

// Host is the process-wide server state: it owns the registry, the
// receive/response path, the strobe scheduler, and the transmit pump
// for the duration of one configured link.
type Host struct {
	cfg Config
	cb  Callbacks

	registry  *cell.Registry
	scheduler *strobe.Scheduler
	pump      *transport.Pump

	decoder framing.Decoder
	crcFunc crc.Generator

	// mu guards exactly the fields ReceiveByte and HandleCom both
	// touch. On a real MCU this would be an interrupt mask; here it is
	// the idiomatic stand-in.
	mu          sync.Mutex
	recvState   receiverState
	recvValid   []byte
	recvTimeout int

	responseCountdown int
	responsePending   bool

	advertising    bool
	advertiseTicks int

	// timestamp is the optional tick counter, held as a
	// one-element slice so the auto-registered timestamp cell can
	// borrow it through cell.BindUint64.
	timestamp []uint64

	protocolInfoWord uint32
}

// sinkAdapter lets the application's Callbacks.ComSend serve as a
// transport.Sink, translating the host's ErrEBUSY into the sentinel
// the pump expects.
type sinkAdapter struct {
	cb Callbacks
}

func (s sinkAdapter) Send(data []byte) error {
	err := s.cb.ComSend(data)
	var e Errno
	if errors.As(err, &e) && e == ErrEBUSY {
		return transport.ErrBusy
	}
	return err
}

// NewHost validates cfg, wires the callbacks, and returns a ready
// Host. The registry is built by the caller and handed in already
// populated; register/seek operations remain available on it
// afterwards, and cells registered after NewHost are included from the
// next strobe on, since every sample walks the registry. When
// Config.TimestampEnable is set, a permanently enabled "timestamp"
// cell is appended to the registry, exposing the tick counter.
func NewHost(cfg Config, registry *cell.Registry, cb Callbacks) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, errors.New("host: callbacks must not be nil")
	}
	if err := cb.ComSetup(); err != nil {
		return nil, err
	}

	crcFunc := crc.Generator(crc.XORFallback)
	if cfg.CRCEnabled {
		crcFunc = cb.CRC
	}

	sched := strobe.New(registry, strobe.Config{
		Dynamic:    cfg.StrobeDynamic,
		Framed:     cfg.StrobeEncoding != framing.None,
		CRCEnabled: cfg.CRCEnabled,
		CRCWidth:   cfg.CRCWidth,
		CRCFunc:    crcFunc,
	}, cfg.StrobePeriodDefault)

	h := &Host{
		cfg:              cfg,
		cb:               cb,
		registry:         registry,
		scheduler:        sched,
		decoder:          framing.NewDecoder(cfg.CommandEncoding, cfg.RecvBufSize),
		crcFunc:          crcFunc,
		advertising:      true,
		timestamp:        []uint64{0},
		protocolInfoWord: PackProtocolInfo(cfg),
	}
	if cfg.TimestampEnable {
		ts := cell.New("timestamp", "ticks", cell.KindUint, 8, 1, cell.BindUint64(h.timestamp), false, true, nil, 0)
		if _, err := registry.Register(ts); err != nil {
			return nil, err
		}
	}
	h.pump = transport.NewPump(cfg.MTU, sinkAdapter{cb: cb})
	return h, nil
}

// ReceiveByte feeds one byte from the byte-source into the inline
// frame decoder. It completes in O(1) time and is the only function
// that may race with HandleCom; mu serializes that race in place of
// the disabled-interrupt window a bare-metal port would use. On a
// receive-buffer overrun the frame is dropped, the decoder is left to
// resynchronize on the next delimiter, and EOVERFLOW is returned;
// the return is nil otherwise.
func (h *Host) ReceiveByte(b byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.recvState == stateIdle {
		h.recvState = stateBuffering
		h.recvTimeout = h.cfg.CommandTimeoutTicks
	}

	n := h.decoder.FeedByte(b)
	if n == 0 {
		return nil
	}
	if n > h.cfg.RecvBufSize {
		log.Debugf("[HOST] receive overrun, dropping frame and resyncing")
		h.recvState = stateIdle
		return ErrEOVERFLOW
	}

	payload := h.decoder.Bytes()
	if h.cfg.CRCEnabled {
		var ok bool
		payload, ok = h.verifyReceiveCRC(payload)
		if !ok {
			log.Debugf("[HOST] receive CRC mismatch, dropping frame")
			h.recvState = stateIdle
			return nil
		}
	}
	h.recvValid = append(h.recvValid[:0], payload...)
	h.recvState = stateReady
	h.responseCountdown = h.cfg.ResponseLatencyTicks
	h.responsePending = true
	return nil
}

// verifyReceiveCRC checks the trailing CRCWidth bytes of payload
// against crcFunc over the preceding bytes; a response is composed
// only for frames whose checksum matches. On success it returns the
// payload with the CRC stripped.
func (h *Host) verifyReceiveCRC(payload []byte) ([]byte, bool) {
	width := int(h.cfg.CRCWidth)
	if len(payload) < width {
		return nil, false
	}
	body := payload[:len(payload)-width]
	got := payload[len(payload)-width:]
	want := crc.Truncate(h.crcFunc(body), h.cfg.CRCWidth)
	if !bytes.Equal(got, want) {
		return nil, false
	}
	return body, true
}

// HandleCom is the sole driver for sampling, interpretation, encoding
// and transmission; it must not be re-entered. The embedding
// application calls it once per tick period.
func (h *Host) HandleCom() error {
	if h.cfg.TimestampEnable {
		h.timestamp[0]++
	}
	h.tickReceiveTimeout()
	h.tickAdvertiser()
	h.tickStrobe()
	h.tickResponse()
	return h.pump.Tick()
}

func (h *Host) tickReceiveTimeout() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.recvState != stateBuffering {
		return
	}
	h.recvTimeout--
	if h.recvTimeout <= 0 {
		log.Debugf("[HOST] receive timeout, dropping partial frame")
		h.decoder.Reset()
		h.recvState = stateIdle
	}
}

func (h *Host) tickAdvertiser() {
	if !h.advertising {
		return
	}
	h.advertiseTicks--
	if h.advertiseTicks > 0 {
		return
	}
	h.advertiseTicks = int(AdvertisePeriodTicks(h.cfg.TickPeriodMS))
	sig := buildSignature(h.protocolInfoWord, h.cfg.LittleEndian)
	h.pump.QueueStrobe(transport.BuildFrames(h.cfg.StrobeEncoding, sig))
}

func (h *Host) tickStrobe() {
	if h.advertising {
		return
	}
	payload := h.scheduler.Tick(h.pump.StrobeBacklog())
	if payload == nil {
		return
	}
	h.pump.QueueStrobe(transport.BuildFrames(h.cfg.StrobeEncoding, payload))
}

func (h *Host) tickResponse() {
	h.mu.Lock()
	if !h.responsePending || h.recvState != stateReady {
		h.mu.Unlock()
		return
	}
	h.responseCountdown--
	if h.responseCountdown > 0 {
		h.mu.Unlock()
		return
	}
	payload := append([]byte(nil), h.recvValid...)
	h.recvState = stateIdle
	h.responsePending = false
	h.mu.Unlock()

	reply, controls := h.interpret(payload)
	if controls != nil {
		h.cb.Controls(controls)
		return
	}
	if reply == nil {
		return
	}
	h.pump.QueueResponse(transport.BuildFrames(h.cfg.CommandEncoding, reply))
}

// interpret decodes one command payload and dispatches it, returning
// the wire-ready reply bytes (nil when the opcode is silent or cannot
// interleave with an active strobe) or, for a raw 0xC1
// frame, the controls payload to hand to the Controls callback.
func (h *Host) interpret(payload []byte) (reply []byte, controls []byte) {
	if len(payload) == 0 {
		return nil, nil
	}
	if command.Opcode(payload[0]) == command.OpControls {
		h.advertising = false
		return nil, payload[1:]
	}

	suppressed := h.cannotInterleave()

	req, err := command.Decode(h.cfg.ProcessingMode, payload)
	if err != nil {
		if suppressed {
			return nil, nil
		}
		return h.encodeReply(command.Tiny(command.Opcode(payload[0]), ErrEINVAL)), nil
	}

	// The first recognized command ends advertising; an
	// undecodable frame does not.
	h.advertising = false

	// With strobe encoding NONE, GET opcodes issued while
	// strobing produce no response (the client must stop strobing
	// first); SET opcodes still execute but their ACK is suppressed.
	if suppressed {
		if req.Op.IsSet() {
			h.dispatch(req)
		}
		return nil, nil
	}

	r := h.dispatch(req)
	if r.Silent {
		return nil, nil
	}
	return h.encodeReply(r), nil
}

// cannotInterleave reports the condition where strobe encoding NONE
// means strobes and responses cannot share the wire, so responses are
// suppressed while strobing.
func (h *Host) cannotInterleave() bool {
	return h.cfg.StrobeEncoding == framing.None && h.scheduler.Strobing()
}

// encodeReply serializes r, degrading to a tiny ECANCELED reply when
// the serialized form would overflow the response buffer.
func (h *Host) encodeReply(r command.Reply) []byte {
	out := command.Encode(h.cfg.ProcessingMode, r)
	if len(out) > h.cfg.RespBufSize {
		out = command.Encode(h.cfg.ProcessingMode, command.Tiny(r.Op, ErrECANCELED))
	}
	return out
}

func (h *Host) dispatch(req command.Request) command.Reply {
	switch req.Op {
	case command.OpGetProtocolInfo:
		return command.Reply{Op: req.Op, Fields: []interface{}{int64(h.protocolInfoWord), h.cfg.VersionString}, Err: ErrNone}
	case command.OpGetTimingInfo:
		return h.handleGetTimingInfo(req)
	case command.OpGetCellCount:
		return command.Reply{Op: req.Op, Fields: []interface{}{int64(h.registry.Count())}, Err: ErrNone}
	case command.OpGetCellParams:
		return h.handleGetCellParams(req)
	case command.OpGetCellValue:
		return h.handleGetCellValue(req)
	case command.OpSetAdvertise:
		return h.handleSetAdvertise(req)
	case command.OpSetStrobePeriod:
		return h.handleSetStrobePeriod(req)
	case command.OpSetDataspaceStrobe:
		return h.handleSetDataspaceStrobe(req)
	case command.OpSetCellStrobe:
		return h.handleSetCellStrobe(req)
	case command.OpSetCellValue:
		return h.handleSetCellValue(req)
	default:
		return command.Tiny(req.Op, ErrEOPNOTSUPP)
	}
}

func (h *Host) handleGetTimingInfo(req command.Request) command.Reply {
	roundtrip := RoundtripLatencyTicks(h.cfg.RecvBufSize, h.cfg.RespBufSize, h.cfg.BaudRate, h.cfg.TickPeriodMS, h.cfg.ResponseLatencyTicks)
	margin := CycleMarginPer10000(h.cfg.BaudRate, h.registry.StrobeLength(), h.scheduler.Period(), h.cfg.TickPeriodMS, h.cfg.StrobeEncoding == framing.ESCS)
	return command.Reply{
		Op: req.Op,
		Fields: []interface{}{
			int64(h.cfg.TickPeriodMS),
			int64(h.cfg.CommandTimeoutTicks),
			int64(roundtrip),
			int64(h.cfg.StrobePeriodMin),
			int64(h.cfg.StrobePeriodMax),
			int64(h.scheduler.Period()),
			int64(margin),
		},
		Err: ErrNone,
	}
}

func (h *Host) argIndex(req command.Request) (int, *cell.Cell, Errno) {
	if len(req.Args) < 1 {
		return 0, nil, ErrEINVAL
	}
	idx, err := req.Args[0].Int64()
	if err != nil {
		return 0, nil, ErrEINVAL
	}
	c := h.registry.At(int(idx))
	if c == nil {
		return 0, nil, ErrEFAULT
	}
	return int(idx), c, ErrNone
}

func (h *Host) handleGetCellParams(req command.Request) command.Reply {
	idx, c, errno := h.argIndex(req)
	if errno != ErrNone {
		return command.Tiny(req.Op, errno)
	}
	_, offset, seekErr := h.registry.Seek(idx)
	if seekErr != nil {
		return command.Tiny(req.Op, ErrEFAULT)
	}
	return command.Reply{
		Op: req.Op,
		Fields: []interface{}{
			c.Name,
			int64(c.Type),
			int64(c.Count),
			c.Unit,
			int64(c.UpdateRate),
			int64(offset),
		},
		Err: ErrNone,
	}
}

func (h *Host) handleGetCellValue(req command.Request) command.Reply {
	_, c, errno := h.argIndex(req)
	if errno != ErrNone {
		return command.Tiny(req.Op, errno)
	}
	v, errno := cellValueToWire(c)
	if errno != ErrNone {
		return command.Tiny(req.Op, errno)
	}
	return command.Reply{Op: req.Op, Fields: []interface{}{v}, Err: ErrNone}
}

// handleSetAdvertise is silent: it forces advertising on
// and strobing off, and invokes the activation callback.
func (h *Host) handleSetAdvertise(req command.Request) command.Reply {
	h.advertising = true
	h.advertiseTicks = int(AdvertisePeriodTicks(h.cfg.TickPeriodMS))
	if h.scheduler.Strobing() {
		h.scheduler.SetStrobing(false)
		h.cb.Activate(false)
	}
	return command.Mute()
}

func (h *Host) handleSetStrobePeriod(req command.Request) command.Reply {
	if len(req.Args) < 1 {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	n, err := req.Args[0].Int64()
	if err != nil || n <= 0 {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	requested := uint16(n)
	if requested < h.cfg.StrobePeriodMin || requested > h.cfg.StrobePeriodMax {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	adopted := h.cb.PeriodChange(requested)
	h.scheduler.SetPeriod(adopted)
	return command.Tiny(req.Op, ErrNone)
}

// handleSetDataspaceStrobe toggles strobing and, on
// a rising edge, arms the scheduler so the first strobe fires on the
// very next tick.
func (h *Host) handleSetDataspaceStrobe(req command.Request) command.Reply {
	if len(req.Args) < 1 {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	n, err := req.Args[0].Int64()
	if err != nil {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	on := n != 0
	wasStrobing := h.scheduler.Strobing()
	h.scheduler.SetStrobing(on)
	if on {
		h.advertising = false
		h.scheduler.ArmImmediate()
	}
	if on != wasStrobing {
		h.cb.Activate(on)
	}
	return command.Tiny(req.Op, ErrNone)
}

// handleSetCellStrobe adjusts a cell's strobe membership; the
// request is rejected silently while
// strobing is active.
func (h *Host) handleSetCellStrobe(req command.Request) command.Reply {
	if h.scheduler.Strobing() {
		return command.Mute()
	}
	if len(req.Args) < 2 {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	idx, err := req.Args[0].Int64()
	if err != nil {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	c := h.registry.At(int(idx))
	if c == nil {
		return command.Tiny(req.Op, ErrEFAULT)
	}
	on, err := req.Args[1].Int64()
	if err != nil {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	c.SetEnabled(on != 0)
	return command.Tiny(req.Op, ErrNone)
}

func (h *Host) handleSetCellValue(req command.Request) command.Reply {
	if len(req.Args) < 2 {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	idx, err := req.Args[0].Int64()
	if err != nil {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	c := h.registry.At(int(idx))
	if c == nil {
		return command.Tiny(req.Op, ErrEFAULT)
	}
	if !c.Writable() {
		return command.Tiny(req.Op, ErrEACCES)
	}
	raw, errno := wireValueToCellBytes(c, req.Args[1])
	if errno != ErrNone {
		return command.Tiny(req.Op, errno)
	}
	if _, err := c.Set(raw); err != nil {
		return command.Tiny(req.Op, ErrEINVAL)
	}
	return command.Tiny(req.Op, ErrNone)
}

// Timestamp returns the tick counter behind the optional built-in
// timestamp cell. It advances once per HandleCom invocation while
// Config.TimestampEnable is set, and must only be read from the tick
// goroutine.
func (h *Host) Timestamp() uint64 { return h.timestamp[0] }
