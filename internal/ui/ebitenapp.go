// Package ui hosts the ebiten-based desktop shell: a window, a keyboard-to-
// joypad mapping and a blit of the emulator's framebuffer. It owns no
// emulation state of its own; internal/emu.Machine does all the work.
package ui

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/lr35902/gbcore/internal/emu"
)

const (
	screenW = 160
	screenH = 144
)

// App is an ebiten.Game driving an emu.Machine at roughly 59.73 Hz (the DMG
// frame rate), blitting its framebuffer and mapping arrow keys / Z,X /
// Enter,Shift to the Game Boy's eight buttons.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool
	fast   bool // hold to run at several multiples of hardware speed

	lastTime time.Time
	frameAcc float64

	fatalErr error
	showFPS  bool
}

// NewApp wraps an already-loaded Machine in a desktop window.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(windowTitle(cfg, m))
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	return &App{
		cfg:      cfg,
		m:        m,
		tex:      ebiten.NewImage(screenW, screenH),
		lastTime: time.Now(),
	}
}

func windowTitle(cfg Config, m *emu.Machine) string {
	if m == nil {
		return cfg.Title
	}
	if t := m.ROMTitle(); t != "" {
		return fmt.Sprintf("%s - [%s]", cfg.Title, t)
	}
	return cfg.Title
}

// Run starts the ebiten event loop; it blocks until the window closes.
func (a *App) Run() error { return ebiten.RunGame(a) }

func readButtons() emu.Buttons {
	return emu.Buttons{
		Right:  ebiten.IsKeyPressed(ebiten.KeyRight),
		Left:   ebiten.IsKeyPressed(ebiten.KeyLeft),
		Up:     ebiten.IsKeyPressed(ebiten.KeyUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyDown),
		A:      ebiten.IsKeyPressed(ebiten.KeyZ),
		B:      ebiten.IsKeyPressed(ebiten.KeyX),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyShiftRight) || ebiten.IsKeyPressed(ebiten.KeyShiftLeft),
	}
}

// Update advances the emulator by however many frames have accumulated
// since the last tick, so emulation speed tracks ebiten's TPS regardless of
// the DMG's 59.73 Hz not dividing it evenly.
func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) && a.m != nil {
		if rom := a.m.ROMPath(); rom != "" {
			if err := a.m.LoadROMFromFile(rom); err != nil {
				a.fatalErr = err
			} else {
				a.fatalErr = nil
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF3) {
		a.showFPS = !a.showFPS
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if a.m == nil || a.paused || a.fatalErr != nil {
		return nil
	}
	a.m.SetButtons(readButtons())

	now := time.Now()
	dt := now.Sub(a.lastTime).Seconds()
	a.lastTime = now
	const targetFPS = 59.73
	a.frameAcc += dt * targetFPS
	if a.frameAcc > 8 { // window was suspended or stalled; don't try to catch up
		a.frameAcc = 8
	}
	multiplier := 1
	if a.fast {
		multiplier = 4
	}
	for a.frameAcc >= 1 {
		for i := 0; i < multiplier; i++ {
			if !a.m.StepFrame() {
				a.fatalErr = a.m.Err()
				break
			}
		}
		a.frameAcc--
		if a.fatalErr != nil {
			break
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.m != nil {
		a.tex.WritePixels(a.m.Framebuffer())
	}
	op := &ebiten.DrawImageOptions{}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op.GeoM.Scale(float64(sw)/screenW, float64(sh)/screenH)
	screen.DrawImage(a.tex, op)

	if a.fatalErr != nil {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("halted: %v", a.fatalErr), 4, 4)
	} else if a.paused {
		ebitenutil.DebugPrintAt(screen, "paused", 4, 4)
	}
	if a.showFPS {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%.1f fps", ebiten.ActualFPS()), 4, sh-16)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
