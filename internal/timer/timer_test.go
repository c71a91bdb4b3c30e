package timer

import (
	"testing"

	"github.com/lr35902/gbcore/internal/interrupt"
)

func TestTimer_DIVFreeRuns(t *testing.T) {
	tm := New()
	ic := &interrupt.Controller{}
	if tm.DIV() != 0 {
		t.Fatalf("DIV at reset got %02X want 00", tm.DIV())
	}
	tm.Tick(64, ic) // 64 M-cycles = 256 T-states, one full DIV increment
	if tm.DIV() != 1 {
		t.Fatalf("DIV after 256 T-states got %02X want 01", tm.DIV())
	}
}

func TestTimer_WriteDIVResetsAndCanEdgeTIMA(t *testing.T) {
	tm := New()
	ic := &interrupt.Controller{}
	tm.WriteTAC(0x05) // enabled, bit3 input
	tm.Tick(2, ic)     // 8 T-states: bit3 now 1
	tm.WriteDIV()      // reset to 0: bit3 1->0 is a falling edge
	if tm.TIMA() != 1 {
		t.Fatalf("TIMA after DIV-induced falling edge got %02X want 01", tm.TIMA())
	}
}

func TestTimer_OverflowReloadsAfterDelay(t *testing.T) {
	tm := New()
	ic := &interrupt.Controller{}
	tm.WriteTAC(0x05)
	tm.WriteTMA(0xAB)
	tm.WriteTIMA(0xFF)

	tm.Tick(4, ic) // 16 T-states: one falling edge, TIMA overflows to 0
	if tm.TIMA() != 0x00 {
		t.Fatalf("TIMA after overflow got %02X want 00", tm.TIMA())
	}
	if ic.Pending() {
		t.Fatalf("timer interrupt requested before reload delay elapsed")
	}
	tm.Tick(1, ic) // 4 more T-states: delay elapses
	if tm.TIMA() != 0xAB {
		t.Fatalf("TIMA after reload got %02X want AB", tm.TIMA())
	}
}

func TestTimer_WriteTIMADuringDelayCancelsReload(t *testing.T) {
	tm := New()
	ic := &interrupt.Controller{}
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x55)
	tm.WriteTIMA(0xFF)
	tm.Tick(4, ic)
	tm.WriteTIMA(0x77)
	tm.Tick(1, ic)
	if tm.TIMA() != 0x77 {
		t.Fatalf("TIMA got %02X want 77 after cancelling reload", tm.TIMA())
	}
}

func TestTimer_DisabledTACStopsTicking(t *testing.T) {
	tm := New()
	ic := &interrupt.Controller{}
	tm.WriteTAC(0x01) // bit3 selected but enable bit (0x04) clear
	tm.Tick(1000, ic)
	if tm.TIMA() != 0 {
		t.Fatalf("TIMA advanced with timer disabled: %02X", tm.TIMA())
	}
}
