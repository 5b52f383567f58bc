package host

import (
	"fmt"

	"github.com/lasso-embedded/host/internal/crc"
	"github.com/lasso-embedded/host/pkg/command"
	"github.com/lasso-embedded/host/pkg/framing"
)

// Config fixes everything about a link that must be decided before it
// starts: encodings, processing mode, buffer sizes, timing, CRC. It is
// validated once, inside NewHost, so every cross-field encoding rule
// becomes a constructor error rather than a runtime assertion.
type Config struct {
	CommandEncoding framing.Encoding
	StrobeEncoding  framing.Encoding
	ProcessingMode  command.Mode
	StrobeDynamic   bool

	MTU         int
	RecvBufSize int
	RespBufSize int

	TickPeriodMS         int
	CommandTimeoutTicks  int
	ResponseLatencyTicks int

	StrobePeriodMin     uint16
	StrobePeriodMax     uint16
	StrobePeriodDefault uint16

	BaudRate int

	CRCEnabled bool
	CRCWidth   crc.Width

	LittleEndian       bool
	UnalignedAccess    bool
	TimestampEnable    bool
	NotificationEnable bool

	// VersionString is reported verbatim in the GET_PROTOCOL_INFO reply.
	VersionString string
}

// Validate enforces the configuration bounds and the encoding
// composability rules. It is idempotent and side-effect free.
func (c Config) Validate() error {
	switch c.CommandEncoding {
	case framing.RN, framing.COBS, framing.ESCS:
	default:
		return fmt.Errorf("host: command encoding must be RN, COBS or ESCS, got %s", c.CommandEncoding)
	}
	switch c.StrobeEncoding {
	case framing.None, framing.COBS, framing.ESCS:
	default:
		return fmt.Errorf("host: strobe encoding must be NONE, COBS or ESCS, got %s", c.StrobeEncoding)
	}
	if c.StrobeEncoding != framing.None && c.StrobeEncoding != c.CommandEncoding {
		return fmt.Errorf("host: strobe encoding %s must equal command encoding %s when strobing is framed", c.StrobeEncoding, c.CommandEncoding)
	}
	if c.CommandEncoding == framing.RN && c.StrobeEncoding != framing.None {
		return fmt.Errorf("host: RN command encoding requires NONE strobe encoding")
	}

	if c.CommandEncoding == framing.COBS {
		if c.MTU != 256 {
			return fmt.Errorf("host: MTU must be 256 for COBS, got %d", c.MTU)
		}
	} else if c.MTU%256 != 0 || c.MTU < 256 || c.MTU > 65536 {
		return fmt.Errorf("host: MTU must be a multiple of 256 in [256, 65536], got %d", c.MTU)
	}

	if c.RecvBufSize < 16 || c.RecvBufSize > 64 {
		return fmt.Errorf("host: receive buffer size must be in [16, 64], got %d", c.RecvBufSize)
	}
	if c.RespBufSize < 32 || c.RespBufSize > 256 {
		return fmt.Errorf("host: response buffer size must be in [32, 256], got %d", c.RespBufSize)
	}

	if c.TickPeriodMS <= 0 {
		return fmt.Errorf("host: tick period must be positive, got %d", c.TickPeriodMS)
	}
	if c.CommandTimeoutTicks <= 0 {
		return fmt.Errorf("host: command timeout must be positive, got %d", c.CommandTimeoutTicks)
	}
	if c.ResponseLatencyTicks < 0 {
		return fmt.Errorf("host: response latency cannot be negative, got %d", c.ResponseLatencyTicks)
	}

	if c.StrobePeriodMin == 0 || c.StrobePeriodMin > c.StrobePeriodDefault || c.StrobePeriodDefault > c.StrobePeriodMax {
		return fmt.Errorf("host: strobe period bounds must satisfy 1 <= min (%d) <= default (%d) <= max (%d)", c.StrobePeriodMin, c.StrobePeriodDefault, c.StrobePeriodMax)
	}

	if c.BaudRate <= 0 {
		return fmt.Errorf("host: baud rate must be positive, got %d", c.BaudRate)
	}

	if c.CRCEnabled && !c.CRCWidth.Valid() {
		return fmt.Errorf("host: CRC width must be 1, 2 or 4 bytes, got %d", c.CRCWidth)
	}

	return nil
}
