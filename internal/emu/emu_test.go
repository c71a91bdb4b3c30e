package emu

import "testing"

// blankROM builds a minimal ROM-only cartridge image big enough to hold a
// valid header, with an infinite JR loop at the entry point so a stepped
// Machine never runs off the end of zeroed memory.
func blankROM() []byte {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0x18 // JR -2 (spin in place)
	rom[0x0101] = 0xFE
	title := "TESTROM"
	copy(rom[0x0134:0x0144], title)
	return rom
}

func TestMachine_LoadCartridge_PostBootState(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if m.ROMTitle() != "TESTROM" {
		t.Fatalf("ROMTitle got %q want TESTROM", m.ROMTitle())
	}
	if got := m.Framebuffer(); len(got) != screenW*screenH*4 {
		t.Fatalf("Framebuffer size got %d want %d", len(got), screenW*screenH*4)
	}
}

func TestMachine_StepFrame_RendersAndReturnsTrue(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !m.StepFrame() {
			t.Fatalf("StepFrame returned false unexpectedly: %v", m.Err())
		}
	}
}

func TestMachine_StepFrame_StopsOnIllegalOpcode(t *testing.T) {
	rom := blankROM()
	rom[0x0100] = 0xD3 // illegal opcode
	m := New(Config{})
	if err := m.LoadCartridge(rom); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if m.StepFrame() {
		t.Fatalf("expected StepFrame to report failure on illegal opcode")
	}
	if m.Err() == nil {
		t.Fatalf("expected Err() to be set after illegal opcode halt")
	}
	if m.StepFrame() {
		t.Fatalf("StepFrame should keep reporting failure once halted")
	}
}

func TestMachine_SetButtons_ReflectsInJoypad(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.SetButtons(Buttons{A: true})
	m.bus.Write(0xFF00, 0x10) // select buttons
	if got := m.bus.Read(0xFF00); got&0x01 != 0 {
		t.Fatalf("JOYP bit0 (A) should read low when A pressed, got %02x", got)
	}
}

func TestMachine_SaveLoadBattery_NoBatteryCart(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if _, ok := m.SaveBattery(); ok {
		t.Fatalf("ROM-only cartridge should not report battery-backed RAM")
	}
	if m.LoadBattery([]byte{1, 2, 3}) {
		t.Fatalf("LoadBattery should fail on a non-battery-backed cartridge")
	}
}
