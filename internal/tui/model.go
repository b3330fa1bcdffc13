// Package tui is the interactive terminal canvas. Terminal cells map to
// canvas pixels; every remote operation runs as a tea.Cmd so the event
// loop never blocks on the lab service.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HerbHall/netcanvas/internal/canvas"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// Cell size in canvas pixels.
const (
	CellWidth  = 10
	CellHeight = 20
)

// headerRows and footerRows frame the drawing area.
const (
	headerRows = 1
	footerRows = 2
)

// sessionPollInterval is how often the model checks for an expired
// session. Redraws are driven by Forward.
const sessionPollInterval = 500 * time.Millisecond

// Notices exposes the notification currently on screen.
type Notices interface {
	Current() (notify.Notification, bool)
}

// Session reports whether the user has to log in again.
type Session interface {
	Requested() bool
}

// opDoneMsg carries the outcome of a remote operation.
type opDoneMsg struct {
	op  string
	err error
}

type tickMsg time.Time

// Model is the bubbletea model of the canvas.
type Model struct {
	ctx     context.Context
	ctl     *canvas.Controller
	notices Notices
	session Session
	title   string

	width, height int
	pointer       canvas.Point
	pressed       string
	dragging      bool
	busy          int
	activeOp      string
	lastErr       error
	expired       bool
}

// NewModel creates the model. notices and session may be nil.
func NewModel(ctx context.Context, ctl *canvas.Controller, notices Notices, session Session, title string) Model {
	return Model{ctx: ctx, ctl: ctl, notices: notices, session: session, title: title}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(sessionPollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ctl.SetViewport(canvas.Viewport{
			Width:  float64(m.width * CellWidth),
			Height: float64(m.rows() * CellHeight),
		})
		return m, nil

	case tickMsg:
		if m.session != nil && m.session.Requested() {
			m.expired = true
			return m, tea.Quit
		}
		return m, tick()

	case changedMsg:
		return m, nil

	case opDoneMsg:
		m.busy--
		if m.busy == 0 {
			m.activeOp = ""
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.lastErr = msg.err
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		cmd := m.handleMouse(msg)
		return m, cmd
	}
	return m, nil
}

// Expired reports whether the program ended because the session expired.
func (m Model) Expired() bool { return m.expired }

func (m Model) rows() int {
	if r := m.height - headerRows - footerRows; r > 0 {
		return r
	}
	return 0
}

// toCanvas converts a terminal cell to the canvas pixel at its centre.
func toCanvas(x, y int) canvas.Point {
	return canvas.Point{
		X: float64(x*CellWidth + CellWidth/2),
		Y: float64((y-headerRows)*CellHeight + CellHeight/2),
	}
}

// toCell converts a canvas position to the terminal cell that shows it.
func toCell(p models.Position) (x, y int) {
	return int(p.X) / CellWidth, int(p.Y)/CellHeight + headerRows
}

// run executes fn off the event loop.
func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy++
	m.activeOp = op
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.ctl.CanvasClick()
		return m, nil
	case "h", "s", "r":
		kind := map[string]models.DeviceKind{
			"h": models.DeviceKindHost,
			"s": models.DeviceKindSwitch,
			"r": models.DeviceKindRouter,
		}[msg.String()]
		at := m.pointer
		return m, m.run("drop", func(ctx context.Context) error {
			_, err := m.ctl.Drop(ctx, kind, at)
			return err
		})
	case "d":
		if !m.ctl.State().Menu.Visible {
			return m, nil
		}
		return m, m.run("delete", m.ctl.DeleteDevice)
	case "v":
		return m, m.run("validate", func(ctx context.Context) error {
			_, err := m.ctl.Validate(ctx)
			return err
		})
	}
	return m, nil
}

// deviceAt returns the device drawn at cell x, y. A device occupies its
// glyph cell and the label cells after it.
func (m Model) deviceAt(x, y int) string {
	for _, d := range m.ctl.Store().Devices() {
		cx, cy := toCell(d.Position)
		if cy == y && x >= cx && x < cx+2+len(d.ID) {
			return d.ID
		}
	}
	return ""
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	inCanvas := msg.Y >= headerRows && msg.Y < headerRows+m.rows()
	if !inCanvas && msg.Action != tea.MouseActionRelease {
		return nil
	}
	if inCanvas {
		m.pointer = toCanvas(msg.X, msg.Y)
	}
	target := m.deviceAt(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			if target == "" {
				m.ctl.CanvasClick()
				return nil
			}
			m.pressed = target
		case tea.MouseButtonRight:
			if target != "" {
				m.ctl.OpenContextMenu(target, m.pointer.X, m.pointer.Y)
			}
		}
		return nil

	case tea.MouseActionMotion:
		if m.pressed == "" || msg.Button != tea.MouseButtonLeft {
			return nil
		}
		if !m.dragging {
			if err := m.ctl.BeginDrag(m.pressed); err != nil {
				m.lastErr = err
				m.pressed = ""
				return nil
			}
			m.dragging = true
		}
		if _, err := m.ctl.DragMove(m.pointer); err != nil {
			m.lastErr = err
		}
		return nil

	case tea.MouseActionRelease:
		pressed, dragging := m.pressed, m.dragging
		m.pressed, m.dragging = "", false
		switch {
		case dragging:
			return m.run("move", m.ctl.EndDrag)
		case pressed != "":
			return m.run("click", func(ctx context.Context) error {
				return m.ctl.Click(ctx, pressed)
			})
		}
	}
	return nil
}
