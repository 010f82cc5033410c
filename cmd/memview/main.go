// Command memview compiles a program, runs it on the VM and shows memory
// as a grid of bytes, highlighting every store as it happens.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"pragmacc/pkg/compiler"
	"pragmacc/pkg/cpu"
	"pragmacc/pkg/grid"
	"pragmacc/pkg/utils"
)

const (
	cellW   = 24
	cellH   = 12
	marginX = 56 // address column
	statusH = 36
	screenW = marginX + cols*cellW
	screenH = rows*cellH + statusH
)

type Game struct {
	v *viewer
}

func (g *Game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.v.paused = !g.v.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.v.step()
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown), inpututil.IsKeyJustPressed(ebiten.KeyDown):
		g.v.scroll(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp), inpututil.IsKeyJustPressed(ebiten.KeyUp):
		g.v.scroll(-1)
	}
	g.v.tick()
	return nil
}

func heatColor(h int) color.RGBA {
	a := uint8(40 + 200*h/heatFrames)
	return color.RGBA{R: 0xE0, G: 0x60, B: 0x20, A: a}
}

func (g *Game) Draw(screen *ebiten.Image) {
	cells := g.v.cells()
	for i, c := range cells {
		x, y := grid.GetGridCoords(i, cols)
		px := marginX + x*cellW
		py := y * cellH
		if x == 0 {
			ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%04X", c.Addr), 0, py)
		}
		switch {
		case c.Heat > 0:
			vector.DrawFilledRect(screen, float32(px), float32(py), cellW-2, cellH-1, heatColor(c.Heat), false)
		case c.Label != "":
			vector.DrawFilledRect(screen, float32(px), float32(py), cellW-2, cellH-1, color.RGBA{0x20, 0x40, 0x80, 0xFF}, false)
		}
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%02X", c.Value), px+2, py-2)
	}

	status := g.v.status()
	mx, my := ebiten.CursorPosition()
	if i := grid.CellAt(mx-marginX, my, cellW, cellH, cols, rows); i >= 0 && i < len(cells) {
		c := cells[i]
		status += fmt.Sprintf("\n0x%04X = 0x%02X %s", c.Addr, c.Value, c.Label)
	}
	ebitenutil.DebugPrintAt(screen, status, 0, rows*cellH)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH + cellH
}

// inputList collects repeated -in flags.
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, ",") }

func (l *inputList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// load builds the inputs and loads the image into a fresh VM.
func load(paths []string, target compiler.Target) (*cpu.CPU, *compiler.Result, error) {
	inputs, err := utils.ReadInputs(paths)
	if err != nil {
		return nil, nil, err
	}
	var (
		units     []compiler.Unit
		externAsm []string
	)
	for _, in := range inputs {
		if in.Kind == utils.KindAsm {
			externAsm = append(externAsm, in.Text)
			continue
		}
		units = append(units, compiler.Unit{Name: in.Name, Source: in.Text})
	}
	res, err := compiler.BuildUnits(context.Background(), units, compiler.Options{Target: target}, externAsm...)
	if err != nil {
		return nil, nil, err
	}
	vm := cpu.NewCPU(target.MemorySize)
	if err := vm.Load(res.Binary); err != nil {
		return nil, nil, err
	}
	return vm, res, nil
}

func main() {
	var inPaths inputList
	flag.Var(&inPaths, "in", "input .c or .asm file (repeatable)")
	steps := flag.Int("steps", 200, "instructions per frame")
	at := flag.String("at", "", "label or address to show first")
	paused := flag.Bool("paused", false, "start paused; space runs, s steps")
	flag.Parse()
	if len(inPaths) == 0 {
		log.Fatal("memview: at least one -in file is required")
	}

	vm, res, err := load(inPaths, compiler.DefaultTarget())
	if err != nil {
		log.Fatalf("Build failed:\n%v", err)
	}

	v := newViewer(vm, res, *steps)
	v.paused = *paused
	if *at != "" {
		if err := v.jumpTo(*at); err != nil {
			log.Fatal(err)
		}
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenW*2, (screenH+cellH)*2)
	ebiten.SetWindowTitle("pragmacc memview")
	if err := ebiten.RunGame(&Game{v: v}); err != nil {
		log.Fatal(err)
	}
}
