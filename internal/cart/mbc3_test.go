package cart

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestMBC3_RTC_LatchAndRead(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: base}

	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000, clk)
	m.Write(0x0000, 0x0A) // RAM/RTC enable

	clk.advance(5*time.Second + 6*time.Minute + 7*time.Hour)
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01) // latch 0->1 edge

	m.Write(0x4000, 0x08) // seconds
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec got %d want 5", got)
	}

	// Advancing the clock after latch must not move the frozen reading.
	clk.advance(30 * time.Second)
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec changed after clock advance: got %d", got)
	}

	m.Write(0x4000, 0x09) // minutes
	if got := m.Read(0xA000); got != 6 {
		t.Fatalf("latched min got %d want 6", got)
	}
	m.Write(0x4000, 0x0A) // hours
	if got := m.Read(0xA000); got != 7 {
		t.Fatalf("latched hour got %d want 7", got)
	}
}

func TestMBC3_RTC_DayRolloverCarry(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: base}

	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000, clk)
	m.Write(0x0000, 0x0A)

	clk.advance(513 * 24 * time.Hour)
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01)

	m.Write(0x4000, 0x0C) // day-high
	got := m.Read(0xA000)
	if got&0x80 == 0 {
		t.Fatalf("day carry bit not set after >511 day overflow, got %02X", got)
	}
}

func TestMBC3_RAM_Persist(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000, clk)
	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x00) // RAM bank 0
	m.Write(0xA000, 0x42)

	data := m.SaveRAM()
	n := NewMBC3(rom, 0x2000, clk)
	n.LoadRAM(data)
	n.Write(0x0000, 0x0A)
	n.Write(0x4000, 0x00)
	if got := n.Read(0xA000); got != 0x42 {
		t.Fatalf("ram persist mismatch: got %02X want 42", got)
	}
}
