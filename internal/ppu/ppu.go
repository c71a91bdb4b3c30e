// Package ppu implements the pixel processing unit: VRAM/OAM storage, the
// LCDC/STAT/LY register block, the mode-0..3 scanline timing state machine,
// and the background/window/sprite pixel pipeline that composites a frame.
package ppu

import "sort"

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT).
type InterruptRequester func(bit int)

// Palette selector values passed to VideoSink.WritePixel, identifying which
// palette register the sink should resolve the 2-bit color index against.
const (
	PaletteBG   = 0
	PaletteOBP0 = 1
	PaletteOBP1 = 2
)

// VideoSink receives one call per visible pixel as the PPU renders a
// scanline, and Present once per completed frame. Color is the raw 2-bit
// index; the sink applies the palette named by paletteSelector.
type VideoSink interface {
	WritePixel(x, y int, color byte, paletteSelector int)
	Present() bool
}

// lineSnapshot freezes the registers that affect rendering as they stood
// when mode 3 began for a given scanline, since software can change SCX,
// SCY, WX or WY mid-frame and real hardware reflects the value held during
// the fetch window, not at HBlank when the scanline is actually emitted.
type lineSnapshot struct {
	valid          bool
	scx, scy       byte
	wy, wx         byte
	lcdc           byte
	bgp, obp0, obp1 byte
	winLine        int
	windowDrawn    bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, timing, and the pixel
// pipeline that turns them into a framebuffer.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	req  InterruptRequester
	sink VideoSink

	winTriggered   bool // WY==LY matched at least once this frame
	winLineCounter int  // internal window line counter, -1 = not yet drawn

	lines [144]lineSnapshot
}

func New(req InterruptRequester) *PPU { return &PPU{req: req, winLineCounter: -1} }

// SetSink attaches (or detaches, with nil) the video sink frames are rendered to.
func (p *PPU) SetSink(sink VideoSink) { p.sink = sink }

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.startFrame()
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// OAMDMAWrite is used by the bus's DMA engine to write OAM directly,
// bypassing the mode-2/3 CPU-access gate (DMA owns the bus during transfer).
func (p *PPU) OAMDMAWrite(offset int, value byte) {
	if offset >= 0 && offset < len(p.oam) {
		p.oam[offset] = value
	}
}

func (p *PPU) startFrame() {
	p.winTriggered = false
	p.winLineCounter = -1
}

// Tick advances PPU state by the given number of dots (CPU clock ticks).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 {
			continue
		}
		p.checkWindowTrigger()
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				// Mode 3 fixed at 172 dots here; real hardware varies
				// 172-289 dots with SCX%8, sprite-fetch, and window-trigger
				// penalties. See DESIGN.md's internal/ppu entry.
				mode = 3
				if p.dot == 80 {
					p.captureLineSnapshot()
				}
			default:
				if (p.stat & 0x03) == 3 {
					p.renderLine()
				}
				mode = 0
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
				if p.sink != nil {
					p.sink.Present()
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.startFrame()
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

// checkWindowTrigger latches the per-frame "window has reached its Y
// position" flag the instant LY matches WY, independent of window enable.
func (p *PPU) checkWindowTrigger() {
	if p.ly == p.wy {
		p.winTriggered = true
	}
}

func (p *PPU) captureLineSnapshot() {
	if p.ly >= 144 {
		return
	}
	windowEnabled := p.lcdc&0x20 != 0
	draw := windowEnabled && p.winTriggered && p.wx <= 166
	winLine := 0
	if draw {
		p.winLineCounter++
		winLine = p.winLineCounter
	}
	p.lines[p.ly] = lineSnapshot{
		valid: true, scx: p.scx, scy: p.scy, wy: p.wy, wx: p.wx,
		lcdc: p.lcdc, bgp: p.bgp, obp0: p.obp0, obp1: p.obp1,
		winLine: winLine, windowDrawn: draw,
	}
}

// LineRegs exposes the frozen per-scanline register snapshot for tests and
// introspection.
type LineRegs struct {
	WinLine int
}

func (p *PPU) LineRegs(ly int) LineRegs {
	if ly < 0 || ly >= 144 {
		return LineRegs{}
	}
	return LineRegs{WinLine: p.lines[ly].winLine}
}

func (p *PPU) renderLine() {
	ly := p.ly
	snap := p.lines[ly]
	if !snap.valid {
		snap = lineSnapshot{scx: p.scx, scy: p.scy, wy: p.wy, wx: p.wx, lcdc: p.lcdc, bgp: p.bgp, obp0: p.obp0, obp1: p.obp1}
	}
	mem := ppuVRAM{p}

	var bgci [160]byte
	if snap.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if snap.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := snap.lcdc&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(mem, mapBase, tileData8000, snap.scx, snap.scy, ly)
	}

	if snap.windowDrawn {
		mapBase := uint16(0x9800)
		if snap.lcdc&0x40 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := snap.lcdc&0x10 != 0
		winXStart := int(snap.wx) - 7
		winci := RenderWindowScanlineUsingFetcher(mem, mapBase, tileData8000, winXStart, byte(snap.winLine))
		for x := winXStart; x < 160; x++ {
			if x < 0 {
				continue
			}
			bgci[x] = winci[x]
		}
	}

	var spriteAttr [160]byte
	var spriteci [160]byte
	if snap.lcdc&0x02 != 0 {
		sprites := ScanOAM(p.oam, ly, snap.lcdc)
		sort.SliceStable(sprites, func(i, j int) bool { return sprites[i].X < sprites[j].X })
		spriteci = ComposeSpriteLine(mem, sprites, ly, bgci, false)
		for _, s := range sprites {
			for x := s.X; x < s.X+8; x++ {
				if x >= 0 && x < 160 && spriteci[x] != 0 {
					spriteAttr[x] = spritePaletteTag(s.Attr)
				}
			}
		}
	}

	if p.sink == nil {
		return
	}
	for x := 0; x < 160; x++ {
		if spriteci[x] != 0 {
			sel := PaletteOBP0
			if spriteAttr[x] == 1 {
				sel = PaletteOBP1
			}
			p.sink.WritePixel(x, int(ly), spriteci[x], sel)
			continue
		}
		p.sink.WritePixel(x, int(ly), bgci[x], PaletteBG)
	}
}

func spritePaletteTag(attr byte) byte {
	if attr&0x10 != 0 {
		return 1
	}
	return 0
}

// ppuVRAM adapts the PPU's internal VRAM array to the VRAMReader interface
// the fetcher/scanline/sprite helpers use, addressed the same way the CPU
// addresses it (0x8000-based), bypassing the mode-3 CPU-access gate since
// this is the PPU's own internal rendering path, not a CPU bus access.
type ppuVRAM struct{ p *PPU }

func (v ppuVRAM) Read(addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	return v.p.vram[addr-0x8000]
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
