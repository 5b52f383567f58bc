package host

// Callbacks is the capability surface the embedding application hands
// to NewHost: one method per host-supplied hook, borrowed by the Host
// for its lifetime. Per-cell write validation is not here; it lives on
// cell.Cell itself, since it is scoped to one cell rather than the
// whole host.
type Callbacks interface {
	// ComSetup performs one-time wiring of the byte-sink/byte-source.
	// Called once from NewHost.
	ComSetup() error

	// ComSend hands len(data) bytes to the byte-sink. Return
	// transport.ErrBusy to defer the chunk to the next tick; any other
	// non-nil error abandons the remainder of the current message.
	ComSend(data []byte) error

	// CRC computes a checksum over data. Width is fixed at
	// configuration time (Config.CRCWidth); only the low CRCWidth
	// bytes of the returned value are used.
	CRC(data []byte) uint32

	// Activate is called whenever strobing turns on or off.
	Activate(on bool)

	// PeriodChange is offered the client's requested strobe period (in
	// ticks) and may clamp it before it is adopted.
	PeriodChange(requestedTicks uint16) uint16

	// Controls is invoked when a raw 0xC1-prefixed frame arrives,
	// bypassing the command interpreter entirely.
	Controls(data []byte)
}

// NopCallbacks implements Callbacks with conservative defaults: no
// checksum, acceptance of every period change, and no-ops everywhere
// else. Embed it and override only the methods an application needs.
type NopCallbacks struct{}

func (NopCallbacks) ComSetup() error           { return nil }
func (NopCallbacks) ComSend(data []byte) error { return nil }
func (NopCallbacks) CRC(data []byte) uint32    { return 0 }
func (NopCallbacks) Activate(on bool)          {}
func (NopCallbacks) PeriodChange(requestedTicks uint16) uint16 {
	return requestedTicks
}
func (NopCallbacks) Controls(data []byte) {}
