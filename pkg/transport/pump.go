// Package transport implements the transmit pump: once per
// tick it picks a queued strobe or response (strobe preferred),
// segments it into MTU-sized chunks, and hands each to the
// application's byte-sink, retrying on backpressure.
package transport

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/lasso-embedded/host/pkg/framing"
)

// ErrBusy is the sentinel a Sink returns to defer a chunk to the next
// tick.
var ErrBusy = errors.New("transport: sink busy")

// Sink hands bytes to the application's byte-sink. It must be
// non-blocking: return ErrBusy rather than wait.
type Sink interface {
	Send(data []byte) error
}

// BuildFrames frames payload for transmission under encoding e,
// splitting it into MaxPayload()-sized segments and marking every
// segment but the last as extended.
// Encodings with no payload ceiling (ESCS, RN, None) return a single
// frame.
func BuildFrames(enc framing.Encoding, payload []byte) []byte {
	maxPayload := enc.MaxPayload()
	if maxPayload <= 0 || len(payload) <= maxPayload {
		return framing.Encode(enc, nil, payload, false)
	}
	var out []byte
	for len(payload) > 0 {
		n := maxPayload
		if n > len(payload) {
			n = len(payload)
		}
		seg := payload[:n]
		payload = payload[n:]
		out = framing.Encode(enc, out, seg, len(payload) > 0)
	}
	return out
}

type pending struct {
	data []byte
	pos  int
}

func (p *pending) remaining() int { return len(p.data) - p.pos }

// Pump drains one chunk per Tick call, preferring a queued strobe over
// a queued response.
type Pump struct {
	mtu      int
	sink     Sink
	strobe   *pending
	response *pending
}

// NewPump builds a Pump. mtu is the configured frame MTU.
func NewPump(mtu int, sink Sink) *Pump {
	return &Pump{mtu: mtu, sink: sink}
}

// QueueStrobe replaces the pending strobe message with an
// already-framed byte stream (see BuildFrames). Any unsent bytes of a
// previous strobe are overwritten: the scheduler must not call this
// while StrobeBacklog() > 0, since an overrun is meant to skip the
// sample rather than discard one in flight.
func (p *Pump) QueueStrobe(framed []byte) {
	p.strobe = &pending{data: framed}
}

// QueueResponse replaces the pending response message.
func (p *Pump) QueueResponse(framed []byte) {
	p.response = &pending{data: framed}
}

// StrobeBacklog reports the bytes of the previous strobe still queued
// for transmission.
func (p *Pump) StrobeBacklog() int {
	if p.strobe == nil {
		return 0
	}
	return p.strobe.remaining()
}

// ResponseBacklog is the analogous backlog for the response channel.
func (p *Pump) ResponseBacklog() int {
	if p.response == nil {
		return 0
	}
	return p.response.remaining()
}

func (p *Pump) selectPending() *pending {
	if p.strobe != nil && p.strobe.remaining() > 0 {
		return p.strobe
	}
	if p.response != nil && p.response.remaining() > 0 {
		return p.response
	}
	return nil
}

func (p *Pump) clear(msg *pending) {
	if msg == p.strobe {
		p.strobe = nil
	}
	if msg == p.response {
		p.response = nil
	}
}

// Tick sends at most one chunk, selecting strobe over response. A
// Sink returning ErrBusy keeps the chunk queued for the next Tick; any
// other error abandons the remaining bytes of the current message.
func (p *Pump) Tick() error {
	msg := p.selectPending()
	if msg == nil {
		return nil
	}
	chunkLen := msg.remaining()
	if chunkLen > p.mtu {
		chunkLen = p.mtu
	}
	chunk := msg.data[msg.pos : msg.pos+chunkLen]
	if err := p.sink.Send(chunk); err != nil {
		if errors.Is(err, ErrBusy) {
			return nil
		}
		log.Debugf("[TRANSPORT] com_send failed, abandoning %d bytes: %v", msg.remaining(), err)
		p.clear(msg)
		return err
	}
	msg.pos += chunkLen
	if msg.remaining() == 0 {
		p.clear(msg)
	}
	return nil
}
