// Package cart implements cartridge ROM/RAM banking: the MBC0 (ROM-only),
// MBC1, MBC2, MBC3 (with RTC) and MBC5 controllers selected by the ROM
// header's cartridge-type byte.
package cart

import "time"

// Cartridge defines the interface the bus needs for ROM/RAM banking.
// Addresses are CPU addresses; Read/Write cover both the 0x0000-0x7FFF
// ROM/control region and the 0xA000-0xBFFF external RAM window.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// BatteryBacked is implemented by cartridges with persistent external RAM.
// SaveRAM returns nil when the cartridge has no RAM to persist.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// Clock abstracts wall-clock access so the MBC3 real-time clock is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock with the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// UnsupportedError reports a cartridge-type byte no controller handles.
type UnsupportedError struct {
	CartType byte
}

func (e *UnsupportedError) Error() string {
	return "unsupported cartridge type: " + cartTypeString(e.CartType)
}

// NewCartridge picks a controller implementation based on the ROM header's
// cartridge-type byte (spec.md §4.3). Unknown codes fall back to ROM-only
// so malformed or homebrew headers don't prevent the bus from booting;
// callers that want strict rejection can inspect Header.CartType directly.
func NewCartridge(rom []byte) Cartridge {
	return NewCartridgeWithClock(rom, RealClock{})
}

// NewCartridgeWithClock is NewCartridge with an injectable wall clock, used
// by tests that need deterministic MBC3 RTC behavior.
func NewCartridgeWithClock(rom []byte, clk Clock) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewMBC0(rom)
	}
	switch h.CartType {
	case 0x00:
		return NewMBC0(rom)
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h.RAMSizeBytes)
	case 0x05, 0x06:
		return NewMBC2(rom)
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return NewMBC3(rom, h.RAMSizeBytes, clk)
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return NewMBC5(rom, h.RAMSizeBytes)
	default:
		return NewMBC0(rom)
	}
}
