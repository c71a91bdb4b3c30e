// Package emu ties the CPU, bus and PPU together into a runnable Game Boy
// machine and exposes the host-facing loop (LoadCartridge, StepFrame,
// SetButtons) that cmd/gbemu and internal/ui drive.
package emu

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/lr35902/gbcore/internal/bus"
	"github.com/lr35902/gbcore/internal/cart"
	"github.com/lr35902/gbcore/internal/cpu"
	"github.com/lr35902/gbcore/internal/ppu"
)

const (
	screenW = 160
	screenH = 144

	// cyclesPerFrame is the nominal DMG T-state budget per frame (154 lines *
	// 456 dots). runFrame uses a multiple of this as a hard cap so a machine
	// with no cartridge, or one halted forever with interrupts disabled,
	// can't spin StepFrame indefinitely.
	cyclesPerFrame = 154 * 456
)

// Buttons is the instantaneous state of the eight-button DMG joypad.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine is a complete, runnable Game Boy: a CPU stepping against a Bus
// that owns the PPU, timer and interrupt controller.
type Machine struct {
	cfg  Config
	bus  *bus.Bus
	cpu  *cpu.CPU
	sink *frameSink

	bootROM  []byte
	romPath  string
	romTitle string

	lastErr error
}

// New creates a Machine with no cartridge loaded. Call LoadCartridge or
// LoadROMFromFile before stepping it.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// SetBootROM stages a DMG boot ROM image to be used by the next
// LoadCartridge/LoadROMFromFile call.
func (m *Machine) SetBootROM(boot []byte) {
	m.bootROM = boot
}

// LoadCartridge resets the machine around the given ROM image. If a boot
// ROM was staged with SetBootROM the CPU starts executing it from 0x0000;
// otherwise it starts directly at the cartridge entry point with the
// registers and I/O ports the Nintendo boot ROM would have left behind (see
// resetPostBoot).
func (m *Machine) LoadCartridge(rom []byte) error {
	hdr, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("emu: %w", err)
	}

	c := cart.NewCartridge(rom)
	b := bus.NewWithCartridge(c)
	m.bus = b
	m.cpu = cpu.New(b)
	m.sink = newFrameSink(b.PPU())
	b.PPU().SetSink(m.sink)
	m.romTitle = hdr.Title
	m.lastErr = nil

	if len(m.bootROM) >= 0x100 {
		b.SetBootROM(m.bootROM)
		m.cpu.SP = 0xFFFE
		m.cpu.PC = 0x0000
		m.cpu.IME = false
	} else {
		m.resetPostBoot()
	}
	return nil
}

// resetPostBoot places the CPU and I/O registers in the state the Nintendo
// DMG boot ROM leaves them in just before jumping to 0x0100, for cartridges
// run without a boot ROM image.
func (m *Machine) resetPostBoot() {
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	b := m.bus
	b.Write(0xFF00, 0xCF)
	b.Write(0xFF05, 0x00) // TIMA
	b.Write(0xFF06, 0x00) // TMA
	b.Write(0xFF07, 0x00) // TAC
	b.Write(0xFF40, 0x91) // LCDC on, BG+sprites
	b.Write(0xFF42, 0x00) // SCY
	b.Write(0xFF43, 0x00) // SCX
	b.Write(0xFF45, 0x00) // LYC
	b.Write(0xFF47, 0xFC) // BGP
	b.Write(0xFF48, 0xFF) // OBP0
	b.Write(0xFF49, 0xFF) // OBP1
	b.Write(0xFF4A, 0x00) // WY
	b.Write(0xFF4B, 0x00) // WX
	b.Write(0xFFFF, 0x00) // IE
}

// LoadROMFromFile reads path and loads it as the running cartridge, using
// whatever boot ROM was previously staged with SetBootROM. It also records
// path so ROMPath can derive a sibling .sav file name.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path passed to the most recent LoadROMFromFile call,
// or "" if the cartridge was loaded directly from bytes.
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" if nothing is loaded.
func (m *Machine) ROMTitle() string { return m.romTitle }

// SetSerialWriter directs bytes shifted out over the serial port to w. Used
// by test ROM harnesses (e.g. Blargg's suites) that report pass/fail over
// the link cable.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons updates the joypad state read by the CPU on the next JOYP read.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// SaveBattery returns the cartridge's external RAM if it is battery-backed,
// for the host to persist across sessions. ok is false for cartridges with
// no battery (or none loaded).
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, isBattery := m.bus.Cart().(cart.BatteryBacked)
	if !isBattery {
		return nil, false
	}
	data = bb.SaveRAM()
	return data, data != nil
}

// LoadBattery restores previously saved external RAM into the running
// cartridge. It returns false if the cartridge isn't battery-backed.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, isBattery := m.bus.Cart().(cart.BatteryBacked)
	if !isBattery {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// Err returns the error that halted the machine, if StepFrame/StepFrameNoRender
// returned false because the CPU encountered a fatal condition (currently
// only an illegal opcode).
func (m *Machine) Err() error { return m.lastErr }

// runFrame advances the CPU until the PPU has presented exactly one frame,
// or the cycle budget is exhausted with no frame produced (no cartridge,
// LCD disabled forever, or a halted CPU with interrupts disabled). It
// returns false if the CPU hit a fatal error.
func (m *Machine) runFrame() bool {
	if m.cpu == nil {
		return true
	}
	if m.lastErr != nil {
		return false
	}
	m.sink.ready = false
	spent := 0
	for spent < cyclesPerFrame*2 {
		pc := m.cpu.PC
		cyc, err := m.cpu.Step()
		if err != nil {
			m.lastErr = err
			return false
		}
		if m.cfg.Trace {
			log.Printf("PC=%04X cyc=%d A=%02X F=%02X SP=%04X", pc, cyc, m.cpu.A, m.cpu.F, m.cpu.SP)
		}
		// cpu.Step already ticks the bus internally; don't double-advance
		// the timer/PPU by ticking it again here.
		spent += cyc
		if m.sink.ready {
			return true
		}
	}
	return true
}

// StepFrame runs the machine for one video frame and renders it into the
// framebuffer returned by Framebuffer. It returns false if the CPU hit a
// fatal error (see Err); the caller should stop stepping the machine.
func (m *Machine) StepFrame() bool {
	if m.sink != nil {
		m.sink.skipRender = false
	}
	return m.runFrame()
}

// StepFrameNoRender runs the machine for one video frame without writing
// pixels into the framebuffer, for headless test-ROM harnesses that only
// care about serial output and run much faster without the blit work.
func (m *Machine) StepFrameNoRender() bool {
	if m.sink != nil {
		m.sink.skipRender = true
	}
	return m.runFrame()
}

// Framebuffer returns the current frame as tightly packed 8-bit RGBA,
// screenW*screenH pixels (160x144 on DMG hardware).
func (m *Machine) Framebuffer() []byte {
	if m.sink == nil {
		return make([]byte, screenW*screenH*4)
	}
	return m.sink.fb[:]
}

// frameSink adapts the PPU's pixel-at-a-time VideoSink interface into a
// packed RGBA framebuffer, resolving each 2-bit color index against the
// palette register (BGP/OBP0/OBP1) active for that pixel.
type frameSink struct {
	ppu        *ppu.PPU
	fb         [screenW * screenH * 4]byte
	ready      bool
	skipRender bool
}

func newFrameSink(p *ppu.PPU) *frameSink {
	return &frameSink{ppu: p}
}

// dmgShade maps a 2-bit color index through a palette register to a
// grayscale intensity, matching the four shades real DMG hardware displays.
func dmgShade(palette byte, colorIndex byte) byte {
	shade := (palette >> (colorIndex * 2)) & 0x03
	switch shade {
	case 0:
		return 0xFF
	case 1:
		return 0xAA
	case 2:
		return 0x55
	default:
		return 0x00
	}
}

func (s *frameSink) WritePixel(x, y int, color byte, paletteSelector int) {
	if s.skipRender {
		return
	}
	if x < 0 || x >= screenW || y < 0 || y >= screenH {
		return
	}
	var palette byte
	switch paletteSelector {
	case ppu.PaletteOBP0:
		palette = s.ppu.OBP0()
	case ppu.PaletteOBP1:
		palette = s.ppu.OBP1()
	default:
		palette = s.ppu.BGP()
	}
	g := dmgShade(palette, color)
	i := (y*screenW + x) * 4
	s.fb[i+0] = g
	s.fb[i+1] = g
	s.fb[i+2] = g
	s.fb[i+3] = 0xFF
}

func (s *frameSink) Present() bool {
	s.ready = true
	return true
}
