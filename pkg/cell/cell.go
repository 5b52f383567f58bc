package cell

// OnChange is an optional per-cell validator, invoked before any
// client write; returning false rejects the write.
type OnChange func(newValue []byte) bool

// Cell describes one exposed memory region. The registration
// index (its position in the Registry) is the client-visible
// identifier; Cell itself carries no index so that it can be built
// independently of the registry that will own it.
type Cell struct {
	Name    string
	Unit    string
	Type    TypeCode
	Count   int
	Binding Binding

	OnChange OnChange

	// UpdateRate is the dynamic-strobe divider N:
	// the cell is sampled every N strobe cycles when dynamic strobing
	// is enabled. Zero means "every cycle" (divider of 1).
	UpdateRate uint16

	countdown uint16
}

// New builds a Cell. writable/permanentlyEnabled feed the packed type
// code; permanentlyEnabled cells start enabled and can never be
// disabled by SET_CELL_STROBE.
func New(name, unit string, kind Kind, width, count int, binding Binding, writable, permanentlyEnabled bool, onChange OnChange, updateRate uint16) *Cell {
	if count < 1 {
		count = 1
	}
	return &Cell{
		Name:       name,
		Unit:       unit,
		Type:       MakeTypeCode(kind, width, writable, permanentlyEnabled),
		Count:      count,
		Binding:    binding,
		OnChange:   onChange,
		UpdateRate: updateRate,
	}
}

// ByteWidth returns the per-element byte width encoded in the type code.
func (c *Cell) ByteWidth() int { return c.Type.Width() }

// StrobeContribution is the number of bytes this cell contributes to
// the strobe payload while enabled: count × max(width, 1).
func (c *Cell) StrobeContribution() int {
	w := c.ByteWidth()
	if w < 1 {
		w = 1
	}
	return c.Count * w
}

// Enabled reports whether the cell is currently part of the active
// data space.
func (c *Cell) Enabled() bool { return c.Type.Enabled() }

// Writable reports whether clients may SET_CELL_VALUE this cell.
func (c *Cell) Writable() bool { return c.Type.Writable() }

// Permanent reports whether the cell is permanently enabled and
// therefore immune to SET_CELL_STROBE.
func (c *Cell) Permanent() bool { return c.Type.Permanent() }

// SetEnabled flips the strobe-membership bit, unless the cell is
// permanently enabled, in which case it is a no-op. Returns the
// resulting state.
func (c *Cell) SetEnabled(enabled bool) bool {
	if c.Permanent() {
		return true
	}
	c.Type = c.Type.withEnabled(enabled)
	return c.Type.Enabled()
}

// Sample copies the cell's current memory contents into dst, which
// must be exactly StrobeContribution() bytes long.
func (c *Cell) Sample(dst []byte) { c.Binding.Read(dst) }

// Get reads the cell's current value into dst (same sizing rule as
// Sample; used by GET_CELL_VALUE).
func (c *Cell) Get(dst []byte) { c.Binding.Read(dst) }

// Set writes a new value, running the validator first; a rejected
// write is suppressed but still acknowledged normally. The bool
// return reports whether the validator accepted the write; err is
// non-nil only when the binding rejects the value (wrong length). Set
// does not check Writable(); that check belongs to the caller.
func (c *Cell) Set(value []byte) (accepted bool, err error) {
	if c.OnChange != nil && !c.OnChange(value) {
		return false, nil
	}
	if err := c.Binding.Write(value); err != nil {
		return false, err
	}
	return true, nil
}

// tickDivider advances the per-cell dynamic-strobe countdown and
// reports whether this cycle samples the cell.
func (c *Cell) tickDivider() bool {
	divider := c.UpdateRate
	if divider == 0 {
		divider = 1
	}
	if c.countdown == 0 {
		c.countdown = divider
	}
	c.countdown--
	if c.countdown == 0 {
		return true
	}
	return false
}

// TickDivider is the exported form of tickDivider, used by pkg/strobe.
func (c *Cell) TickDivider() bool { return c.tickDivider() }
