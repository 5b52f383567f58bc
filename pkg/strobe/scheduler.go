// Package strobe implements the strobe scheduler: the tick
// countdown, sampling, dynamic bit mask, and overdrive detection that
// together produce one strobe payload at most once per strobe period.
package strobe

import (
	log "github.com/sirupsen/logrus"

	"github.com/lasso-embedded/host/internal/crc"
	"github.com/lasso-embedded/host/pkg/cell"
)

// strobeMarker is the invalid MessagePack prefix byte inserted ahead
// of a framed strobe payload so the client can tell strobes and
// responses apart when they share an encoding.
const strobeMarker = 0xC1

// Config fixes the parts of the strobe format that do not change
// tick-to-tick.
type Config struct {
	Dynamic    bool // per-cell update-rate divider masking
	Framed     bool // strobe encoding != NONE: prefix payload with strobeMarker
	CRCEnabled bool
	CRCWidth   crc.Width
	CRCFunc    crc.Generator // nil means crc.XORFallback
}

// Scheduler owns the strobe countdown and the registry it samples
// from. It produces raw (unframed) payload bytes; framing and
// transmission belong to pkg/transport.
type Scheduler struct {
	registry *cell.Registry
	cfg      Config

	strobing  bool
	period    uint16
	countdown uint16
	overdrive bool

	raw []byte
}

// New builds a Scheduler over registry. period is the initial strobe
// period in ticks.
func New(registry *cell.Registry, cfg Config, period uint16) *Scheduler {
	if cfg.CRCFunc == nil {
		cfg.CRCFunc = crc.XORFallback
	}
	return &Scheduler{registry: registry, cfg: cfg, period: period}
}

// SetStrobing turns strobing on or off. Disabling clears a pending
// overdrive flag.
func (s *Scheduler) SetStrobing(on bool) {
	s.strobing = on
	if !on {
		s.overdrive = false
	}
}

// Strobing reports the current strobing state.
func (s *Scheduler) Strobing() bool { return s.strobing }

// SetPeriod adopts a new strobe period in ticks. Callers apply the
// period_change callback's clamp before calling this.
func (s *Scheduler) SetPeriod(ticks uint16) { s.period = ticks }

// Period returns the current strobe period in ticks.
func (s *Scheduler) Period() uint16 { return s.period }

// ArmImmediate resets the countdown to 1 so the first strobe fires on
// the very next tick.
func (s *Scheduler) ArmImmediate() { s.countdown = 1 }

// Overdrive reports whether the most recent sample instant found the
// previous strobe still in flight and skipped sampling.
func (s *Scheduler) Overdrive() bool { return s.overdrive }

// Tick advances the countdown and, when it underflows with no backlog
// outstanding, samples the registry into a fresh payload. backlog is
// the transmit pump's current strobe byte count;
// when non-zero the sample is skipped and overdrive is raised.
// Tick returns the sampled payload, or nil when no sample was taken.
func (s *Scheduler) Tick(backlog int) []byte {
	if !s.strobing {
		return nil
	}
	if s.countdown == 0 {
		s.countdown = s.period
	}
	s.countdown--
	if s.countdown != 0 {
		return nil
	}
	s.countdown = s.period

	if backlog > 0 {
		s.overdrive = true
		log.Debugf("[STROBE] overrun: %d bytes of previous strobe still queued, skipping sample", backlog)
		return nil
	}
	s.overdrive = false
	return s.sample()
}

func (s *Scheduler) sample() []byte {
	cells := s.registry.All()

	var mask []byte
	if s.cfg.Dynamic {
		mask = make([]byte, (len(cells)+7)/8)
	}

	s.raw = s.raw[:0]
	maskPos := 0
	if mask != nil {
		s.raw = append(s.raw, mask...)
	}
	if s.cfg.Framed {
		s.raw = append(s.raw, strobeMarker)
	}

	for i, c := range cells {
		if !c.Enabled() {
			continue
		}
		due := true
		if s.cfg.Dynamic {
			due = c.TickDivider()
			if due {
				mask[i/8] |= 1 << uint(i%8)
			}
		}
		if !due {
			continue
		}
		n := c.StrobeContribution()
		start := len(s.raw)
		s.raw = append(s.raw, make([]byte, n)...)
		c.Sample(s.raw[start : start+n])
	}

	if mask != nil {
		copy(s.raw[maskPos:maskPos+len(mask)], mask)
	}

	if s.cfg.CRCEnabled {
		sum := s.cfg.CRCFunc(s.raw)
		s.raw = append(s.raw, crc.Truncate(sum, s.cfg.CRCWidth)...)
	}

	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out
}
