package host

import (
	"github.com/lasso-embedded/host/internal/crc"
	"github.com/lasso-embedded/host/pkg/command"
	"github.com/lasso-embedded/host/pkg/framing"
)

// Bit offsets of the protocol_info word advertised to clients.
const (
	piCommandEncodingShift  = 0
	piCommandEncodingMask   = 0x3
	piStrobeSameEncodingBit = 1 << 2
	piProcessingModeBit     = 1 << 3
	piStrobeDynamicBit      = 1 << 4
	piCRCWidthShift         = 5
	piCRCWidthMask          = 0x3
	piCommandCRCEnabledBit  = 1 << 7
	piStrobeCRCEnabledBit   = 1 << 8
	piLittleEndianBit       = 1 << 9
	piCommandBufSizeShift   = 10
	piCommandBufSizeMask    = 0x3F
	piResponseBufSizeShift  = 16
	piResponseBufSizeMask   = 0xFF
	piMTUUnitsShift         = 24
	piMTUUnitsMask          = 0xFF
)

// PackProtocolInfo packs a validated Config into the wire word
// the advertisement carries. Callers must validate cfg first; this function
// does not re-check invariants.
func PackProtocolInfo(cfg Config) uint32 {
	var word uint32

	word |= uint32(cfg.CommandEncoding) & piCommandEncodingMask

	if cfg.StrobeEncoding == cfg.CommandEncoding {
		word |= piStrobeSameEncodingBit
	}
	if cfg.ProcessingMode == command.MsgPack {
		word |= piProcessingModeBit
	}
	if cfg.StrobeDynamic {
		word |= piStrobeDynamicBit
	}

	widthCode := uint32(0)
	if cfg.CRCWidth.Valid() {
		widthCode = uint32(cfg.CRCWidth) - 1
	}
	word |= (widthCode & piCRCWidthMask) << piCRCWidthShift

	if cfg.CRCEnabled {
		word |= piCommandCRCEnabledBit
		word |= piStrobeCRCEnabledBit
	}
	if cfg.LittleEndian {
		word |= piLittleEndianBit
	}

	word |= (uint32(cfg.RecvBufSize-1) & piCommandBufSizeMask) << piCommandBufSizeShift
	word |= (uint32(cfg.RespBufSize-1) & piResponseBufSizeMask) << piResponseBufSizeShift
	word |= (uint32(cfg.MTU/256-1) & piMTUUnitsMask) << piMTUUnitsShift

	return word
}

// ProtocolInfo is the unpacked form of the protocol_info word, used by
// tests and diagnostics.
type ProtocolInfo struct {
	CommandEncoding    framing.Encoding
	StrobeSameEncoding bool
	ProcessingMode     command.Mode
	StrobeDynamic      bool
	CRCWidth           crc.Width
	CommandCRCEnabled  bool
	StrobeCRCEnabled   bool
	LittleEndian       bool
	CommandBufSize     int
	ResponseBufSize    int
	MTU                int
}

// ParseProtocolInfo unpacks a wire word back into its fields.
func ParseProtocolInfo(word uint32) ProtocolInfo {
	mode := command.ASCII
	if word&piProcessingModeBit != 0 {
		mode = command.MsgPack
	}
	return ProtocolInfo{
		CommandEncoding:    framing.Encoding((word >> piCommandEncodingShift) & piCommandEncodingMask),
		StrobeSameEncoding: word&piStrobeSameEncodingBit != 0,
		ProcessingMode:     mode,
		StrobeDynamic:      word&piStrobeDynamicBit != 0,
		CRCWidth:           crc.Width(((word>>piCRCWidthShift)&piCRCWidthMask) + 1),
		CommandCRCEnabled:  word&piCommandCRCEnabledBit != 0,
		StrobeCRCEnabled:   word&piStrobeCRCEnabledBit != 0,
		LittleEndian:       word&piLittleEndianBit != 0,
		CommandBufSize:     int((word>>piCommandBufSizeShift)&piCommandBufSizeMask) + 1,
		ResponseBufSize:    int((word>>piResponseBufSizeShift)&piResponseBufSizeMask) + 1,
		MTU:                (int((word>>piMTUUnitsShift)&piMTUUnitsMask) + 1) * 256,
	}
}
