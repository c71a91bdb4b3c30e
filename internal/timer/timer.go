// Package timer implements the divider and configurable timer block
// described in spec.md §4.5: DIV free-runs off the CPU clock, TIMA
// increments at a TAC-selected rate and reloads from TMA on overflow,
// requesting the Timer interrupt.
package timer

import "github.com/lr35902/gbcore/internal/interrupt"

// inputBit maps the low two bits of TAC to the internal-divider bit whose
// falling edge clocks TIMA.
var inputBit = [4]uint{9, 3, 5, 7}

// Timer owns DIV/TIMA/TMA/TAC and the delayed-reload behavior real
// hardware exhibits: on overflow TIMA reads 0x00 for one M-cycle (four
// T-states) before TMA is latched in and the interrupt is requested.
type Timer struct {
	div  uint16 // internal 16-bit divider; DIV register is the high byte
	tima byte
	tma  byte
	tac  byte // low 3 bits used

	reloadDelay int // T-states remaining until TIMA <- TMA, 0 = none pending
}

func New() *Timer {
	return &Timer{}
}

func (t *Timer) DIV() byte  { return byte(t.div >> 8) }
func (t *Timer) TIMA() byte { return t.tima }
func (t *Timer) TMA() byte  { return t.tma }
func (t *Timer) TAC() byte  { return 0xF8 | (t.tac & 0x07) }

// WriteDIV resets the divider to zero. A falling edge caused by the reset
// on the currently selected bit ticks TIMA once, matching hardware.
func (t *Timer) WriteDIV() {
	before := t.input()
	t.div = 0
	if before && !t.input() {
		t.bumpTIMA()
	}
}

// WriteTIMA sets TIMA directly. A write during the four-cycle reload
// window cancels the pending reload.
func (t *Timer) WriteTIMA(v byte) {
	t.tima = v
	t.reloadDelay = 0
}

func (t *Timer) WriteTMA(v byte) { t.tma = v }

// WriteTAC updates the timer's rate/enable bits. Changing TAC can itself
// cause a falling edge on the selected input, which also ticks TIMA.
func (t *Timer) WriteTAC(v byte) {
	before := t.input()
	t.tac = v & 0x07
	if before && !t.input() {
		t.bumpTIMA()
	}
}

// Tick advances the timer by the given number of M-cycles (4 clock ticks
// each), driven once per CPU step by the host loop. Overflow requests the
// Timer interrupt through ic.
func (t *Timer) Tick(mCycles int, ic *interrupt.Controller) {
	for i := 0; i < mCycles; i++ {
		for c := 0; c < 4; c++ {
			t.tickDot(ic)
		}
	}
}

func (t *Timer) tickDot(ic *interrupt.Controller) {
	before := t.input()
	t.div++
	falling := before && !t.input()

	if t.reloadDelay > 0 {
		t.reloadDelay--
		if t.reloadDelay == 0 {
			t.tima = t.tma
			ic.Request(interrupt.Timer)
		}
	}

	if falling {
		t.bumpTIMA()
	}
}

func (t *Timer) input() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	bit := inputBit[t.tac&0x03]
	return (t.div>>bit)&1 != 0
}

// bumpTIMA increments TIMA, or on overflow drops it to 0x00 and starts the
// four-cycle reload delay (the interrupt request happens when it expires).
func (t *Timer) bumpTIMA() {
	if t.reloadDelay > 0 {
		return
	}
	if t.tima == 0xFF {
		t.tima = 0x00
		t.reloadDelay = 4
		return
	}
	t.tima++
}
