package cart

import "time"

// MBC3 implements ROM/RAM banking plus the real-time clock registers.
// Banking behavior:
//   - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
//   - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   - 4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
//   - 6000-7FFF: latch clock: a 0x00 then 0x01 write freezes the RTC
//     registers at the current time until the next such transition
//   - A000-BFFF: selected RAM bank, or the latched RTC register
type MBC3 struct {
	rom []byte
	ram []byte
	clk Clock

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	bankSel    byte // 0..3 RAM bank, or 0x08..0x0C RTC register select

	latchPending byte // last byte written to 0x6000-0x7FFF, for edge detection
	base         time.Time
	latched      [5]byte // seconds, minutes, hours, day-lo, day-hi
	haveLatch    bool
	halt         bool
	dayCarry     bool
}

func NewMBC3(rom []byte, ramSize int, clk Clock) *MBC3 {
	if clk == nil {
		clk = RealClock{}
	}
	m := &MBC3{rom: rom, clk: clk, romBank: 1, base: clk.Now()}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.bankSel >= 0x08 && m.bankSel <= 0x0C {
			return m.readRTC(m.bankSel)
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.bankSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 || (value >= 0x08 && value <= 0x0C) {
			m.bankSel = value
		}
	case addr < 0x8000:
		if m.latchPending == 0x00 && value == 0x01 {
			m.latch()
		}
		m.latchPending = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.bankSel >= 0x08 && m.bankSel <= 0x0C {
			m.writeRTC(m.bankSel, value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.bankSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

// latch freezes the five RTC registers at the clock's current reading,
// deriving them from elapsed wall time since the cartridge's base instant
// unless the halt bit is set, in which case the counter is frozen as-is.
func (m *MBC3) latch() {
	if m.halt {
		m.haveLatch = true
		return
	}
	elapsed := m.clk.Now().Sub(m.base)
	totalSeconds := int64(elapsed / time.Second)
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	days := totalSeconds / 86400
	rem := totalSeconds % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	if days > 511 {
		m.dayCarry = true
		days %= 512
	}

	m.latched[0] = byte(seconds)
	m.latched[1] = byte(minutes)
	m.latched[2] = byte(hours)
	m.latched[3] = byte(days & 0xFF)
	dayHigh := byte((days >> 8) & 0x01)
	if m.halt {
		dayHigh |= 0x40
	}
	if m.dayCarry {
		dayHigh |= 0x80
	}
	m.latched[4] = dayHigh
	m.haveLatch = true
}

func (m *MBC3) readRTC(reg byte) byte {
	if !m.haveLatch {
		m.latch()
	}
	idx := reg - 0x08
	if idx > 4 {
		return 0xFF
	}
	return m.latched[idx]
}

// writeRTC lets software set the clock forward/back (used by games to
// correct drift) and toggle the halt/carry bits in the day-high register.
func (m *MBC3) writeRTC(reg, value byte) {
	idx := reg - 0x08
	if idx > 4 {
		return
	}
	if idx == 4 {
		m.halt = value&0x40 != 0
		m.dayCarry = value&0x80 != 0
	}
	m.latched[idx] = value
	// Re-derive the base instant so future latches account for the edit.
	m.base = m.clk.Now().Add(-m.elapsedFromLatched())
	m.haveLatch = true
}

func (m *MBC3) elapsedFromLatched() time.Duration {
	days := int64(m.latched[3]) | int64(m.latched[4]&0x01)<<8
	seconds := int64(m.latched[0]) + int64(m.latched[1])*60 + int64(m.latched[2])*3600 + days*86400
	return time.Duration(seconds) * time.Second
}

func (m *MBC3) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}
