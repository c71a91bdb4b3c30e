package ppu

import "testing"

func TestComposeSpriteLinePriorityAndTransparency(t *testing.T) {
	mem := mockVRAM{}
	// Sprite tile with a single opaque leftmost pixel at bit7: lo=0x01<<7 -> 0x80, hi=0
	base := uint16(0x8000)
	mem[base+0] = 0x80
	mem[base+1] = 0x00
	// Y is in raw OAM form (screen row + 16): Y=21 puts the sprite's top row on ly=5.
	sprites := []Sprite{{X: 10, Y: 21, Tile: 0, Attr: 0, OAMIndex: 0}}
	var bgci [160]byte
	out := ComposeSpriteLine(mem, sprites, 5, bgci, false)
	if out[10] == 0 {
		t.Fatalf("expected sprite pixel at x=10")
	}
	// With priority behind BG and bgci non-zero, pixel must be skipped
	sprites[0].Attr = 1 << 7
	bgci[10] = 1
	out = ComposeSpriteLine(mem, sprites, 5, bgci, false)
	if out[10] != 0 {
		t.Fatalf("expected sprite pixel to be hidden behind BG")
	}
}

func TestComposeSpriteLineTieBreaker(t *testing.T) {
	mem := mockVRAM{}
	// Tile 0: every pixel color index 2 (lo=0x00, hi=0xFF).
	mem[uint16(0x8000)+0] = 0x00
	mem[uint16(0x8000)+1] = 0xFF
	// Tile 1: every pixel color index 1 (lo=0xFF, hi=0x00).
	mem[uint16(0x8010)+0] = 0xFF
	mem[uint16(0x8010)+1] = 0x00

	// sLeft has the smaller X but a larger OAM index; sRight has the larger
	// X but a smaller OAM index. If priority were still resolved by OAM
	// index alone, sRight (index 1) would win the overlap at x=20..23; per
	// spec.md sprite priority is (X ascending, OAM index as tiebreak only
	// among equal X), so the caller sorts by X before calling and sLeft
	// must win since its X is smaller.
	// Y=32 (raw OAM form, screen row + 16) puts both sprites' top row on ly=16.
	sLeft := Sprite{X: 16, Y: 32, Tile: 0, Attr: 0, OAMIndex: 9}
	sRight := Sprite{X: 20, Y: 32, Tile: 1, Attr: 0, OAMIndex: 1}
	var bgci [160]byte
	out := ComposeSpriteLine(mem, []Sprite{sLeft, sRight}, 16, bgci, false)

	for x := 20; x < 24; x++ {
		if out[x] != 2 {
			t.Fatalf("x=%d: expected sLeft (smaller X) to win overlap with color index 2, got %d", x, out[x])
		}
	}
	for x := 24; x < 28; x++ {
		if out[x] != 1 {
			t.Fatalf("x=%d: expected sRight's non-overlapping pixel color index 1, got %d", x, out[x])
		}
	}
}

// recordingSink captures every pixel PPU.renderLine writes so a full
// LCDC-on/Tick-driven render can be asserted against directly, rather than
// calling ComposeSpriteLine in isolation.
type recordingSink struct {
	px [160]byte
}

func (s *recordingSink) WritePixel(x, y int, color byte, paletteSelector int) {
	if y == 0 && x >= 0 && x < 160 {
		s.px[x] = color
	}
}
func (s *recordingSink) Present() bool { return true }

// TestRenderLineSpritePriority_XAscendingOverridesOAMIndex exercises the
// real ScanOAM->sort->ComposeSpriteLine pipeline inside renderLine, proving
// priority is resolved by ascending X rather than OAM index: OAM entry 0 has
// the larger X but is scanned first, and must still lose the overlap to OAM
// entry 1's smaller-X sprite per spec.md §4.4.
func TestRenderLineSpritePriority_XAscendingOverridesOAMIndex(t *testing.T) {
	p := New(nil)
	sink := &recordingSink{}
	p.SetSink(sink)

	// Tile 0: color index 2 everywhere (lo=0x00, hi=0xFF).
	p.CPUWrite(0x8000, 0x00)
	p.CPUWrite(0x8001, 0xFF)
	// Tile 1: color index 1 everywhere (lo=0xFF, hi=0x00).
	p.CPUWrite(0x8010, 0xFF)
	p.CPUWrite(0x8011, 0x00)

	// OAM entry 0 (lower index): X screen-space 20, uses tile 1 (color 1).
	p.OAMDMAWrite(0*4+0, 16) // Y raw -> top=0, covers ly=0
	p.OAMDMAWrite(0*4+1, 28) // X raw -> screen X = 20
	p.OAMDMAWrite(0*4+2, 1)
	p.OAMDMAWrite(0*4+3, 0)
	// OAM entry 1 (higher index): X screen-space 16, uses tile 0 (color 2).
	p.OAMDMAWrite(1*4+0, 16)
	p.OAMDMAWrite(1*4+1, 24) // screen X = 16
	p.OAMDMAWrite(1*4+2, 0)
	p.OAMDMAWrite(1*4+3, 0)

	p.CPUWrite(0xFF40, 0x80|0x02) // LCD on, sprites enabled, BG/window off
	p.Tick(80 + 172)              // run through mode 3 and into the mode-0 renderLine call for LY=0

	for x := 20; x < 24; x++ {
		if sink.px[x] != 2 {
			t.Fatalf("x=%d: expected smaller-X sprite (OAM index 1, color 2) to win overlap, got %d", x, sink.px[x])
		}
	}
	for x := 16; x < 20; x++ {
		if sink.px[x] != 2 {
			t.Fatalf("x=%d: expected sprite's non-overlapping pixel color index 2, got %d", x, sink.px[x])
		}
	}
	for x := 24; x < 28; x++ {
		if sink.px[x] != 1 {
			t.Fatalf("x=%d: expected other sprite's non-overlapping pixel color index 1, got %d", x, sink.px[x])
		}
	}
}
