package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HerbHall/netcanvas/internal/notify"
)

const menuText = " [d] delete  [esc] close "

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	linkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	draggedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	menuStyle     = lipgloss.NewStyle().Background(lipgloss.Color("238")).Foreground(lipgloss.Color("15"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type paint int

const (
	paintNone paint = iota
	paintLink
	paintDevice
	paintSelected
	paintDragged
	paintMenu
)

var paintStyles = map[paint]lipgloss.Style{
	paintLink:     linkStyle,
	paintSelected: selectedStyle,
	paintDragged:  draggedStyle,
	paintMenu:     menuStyle,
}

type cell struct {
	r rune
	p paint
}

type grid struct {
	w, h  int
	cells [][]cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, cells: make([][]cell, h)}
	for y := range g.cells {
		row := make([]cell, w)
		for x := range row {
			row[x] = cell{r: ' '}
		}
		g.cells[y] = row
	}
	return g
}

func (g *grid) set(x, y int, r rune, p paint) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y][x] = cell{r: r, p: p}
}

func (g *grid) text(x, y int, s string, p paint) {
	for i, r := range []rune(s) {
		g.set(x+i, y, r, p)
	}
}

// line draws a Bresenham segment, leaving both end cells untouched.
func (g *grid) line(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx + dy
	x, y := x0, y0
	for x != x1 || y != y1 {
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
		if x == x1 && y == y1 {
			break
		}
		g.set(x, y, '·', paintLink)
	}
}

func (g *grid) render() string {
	var b strings.Builder
	for y, row := range g.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].p == row[start].p {
				continue
			}
			var run strings.Builder
			for _, c := range row[start:x] {
				run.WriteRune(c.r)
			}
			if style, ok := paintStyles[row[start].p]; ok {
				b.WriteString(style.Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			start = x
		}
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "starting…"
	}
	state := m.ctl.State()
	store := m.ctl.Store()

	g := newGrid(m.width, m.rows())
	devices := store.Devices()
	pos := make(map[string][2]int, len(devices))
	for _, d := range devices {
		x, y := toCell(d.Position)
		pos[d.ID] = [2]int{x, y - headerRows}
	}
	for _, c := range store.Connections() {
		a, b := pos[c.EndpointA], pos[c.EndpointB]
		g.line(a[0], a[1], b[0], b[1])
	}
	for _, d := range devices {
		p := pos[d.ID]
		style := paintDevice
		switch d.ID {
		case state.Dragged:
			style = paintDragged
		case state.Selected:
			style = paintSelected
		}
		g.text(p[0], p[1], d.Kind.Glyph()+" "+d.ID, style)
	}
	if state.Menu.Visible {
		g.text(int(state.Menu.X)/CellWidth, int(state.Menu.Y)/CellHeight+1, menuText, paintMenu)
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteByte('\n')
	b.WriteString(g.render())
	b.WriteByte('\n')
	b.WriteString(m.notification())
	b.WriteByte('\n')
	b.WriteString(m.status(store.Loading()))
	return b.String()
}

func (m Model) header() string {
	title := m.title
	if title == "" {
		title = "untitled"
	}
	return titleStyle.Render("netcanvas") + " " + title + "  " +
		hintStyle.Render("h/s/r add · drag move · click two devices to link · right-click menu · v validate · q quit")
}

func (m Model) notification() string {
	if m.notices == nil {
		return ""
	}
	n, ok := m.notices.Current()
	if !ok {
		return ""
	}
	if n.Kind == notify.KindError {
		return errorStyle.Render("✗ " + n.Message)
	}
	return successStyle.Render("✓ " + n.Message)
}

func (m Model) status(loading bool) string {
	switch {
	case loading:
		return hintStyle.Render("loading topology…")
	case m.busy > 0:
		return hintStyle.Render("⋯ " + m.activeOp)
	case m.lastErr != nil:
		return errorStyle.Render(m.lastErr.Error())
	}
	return ""
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
