package host

// ceilDiv computes ⌈a/b⌉ for positive integers.
func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// AdvertisePeriodTicks converts the fixed 250 ms advertisement cadence
// into ticks: ⌈250 / tick_ms⌉.
func AdvertisePeriodTicks(tickPeriodMS int) uint16 {
	return uint16(ceilDiv(250, tickPeriodMS))
}

// RoundtripLatencyTicks is the worst-case command round trip in ticks:
// ⌈(recv_buf + resp_buf) × 10000 / baud / tick_ms⌉ + response_latency_ticks + 2,
// assuming ten bit times per byte on the wire.
func RoundtripLatencyTicks(recvBufSize, respBufSize, baudRate, tickPeriodMS, responseLatencyTicks int) int {
	transferTicks := ceilDiv(ceilDiv((recvBufSize+respBufSize)*10000, baudRate), tickPeriodMS)
	return transferTicks + responseLatencyTicks + 2
}

// CycleMarginPer10000 reports the spare wire budget per strobe cycle:
// (baud − strobe_bits_per_second) × 10000 / baud, where
// strobe_bits_per_second conservatively assumes 100% ESCS overhead
// when applicable (escsOverhead).
//
// strobeBytes is the current enabled-cell byte total; periodTicks and
// tickPeriodMS convert it to a bits-per-second rate.
func CycleMarginPer10000(baudRate, strobeBytes int, periodTicks uint16, tickPeriodMS int, escsOverhead bool) int {
	if periodTicks == 0 || tickPeriodMS <= 0 {
		return 10000
	}
	bits := strobeBytes * 8
	if escsOverhead {
		bits *= 2
	}
	periodMS := int(periodTicks) * tickPeriodMS
	bitsPerSecond := bits * 1000 / periodMS
	return (baudRate - bitsPerSecond) * 10000 / baudRate
}
