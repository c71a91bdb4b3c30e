package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 16*0x4000)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank1 read got %02X want 01", got)
	}

	// Bit 8 of the address set selects ROM bank, not RAM enable.
	m.Write(0x2100, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	m.Write(0x2100, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_BuiltinRAM(t *testing.T) {
	rom := make([]byte, 16*0x4000)
	m := NewMBC2(rom)

	// Bit 8 clear selects RAM enable.
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x37)
	if got := m.Read(0xA000); got != 0xF7 {
		t.Fatalf("ram read got %02X want F7 (upper nibble forced to F)", got)
	}

	// Address mirrors every 0x200 bytes across the A000-BFFF window.
	if got := m.Read(0xA200); got != 0xF7 {
		t.Fatalf("ram mirror read got %02X want F7", got)
	}
}

func TestMBC2_RAMDisabled(t *testing.T) {
	rom := make([]byte, 16*0x4000)
	m := NewMBC2(rom)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled ram read got %02X want FF", got)
	}
}
