package tui

import (
	"log/slog"
	"os"

	list "github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"roadedit/internal/editor"
	"roadedit/internal/logging"
	"roadedit/internal/mapview"
	"roadedit/internal/session"
)

const (
	sidebarWidth = 28
	headerHeight = 1
	footerHeight = 2
)

// Deps are the collaborators shared by every editor the app opens.
type Deps struct {
	Loader  *session.Loader
	Gateway *session.Gateway
	Session []session.Option
	Logger  *slog.Logger
	// Dir is the directory listed by the import sidebar; empty means the
	// working directory.
	Dir string
}

// Editor is the road editing screen for one task.
type Editor struct {
	deps   Deps
	logger *slog.Logger

	taskID string
	sess   *session.Session
	eng    *editor.Engine
	m      *mapview.Map

	width  int
	height int

	status string
	spin   spinner.Model
	saving bool

	helpVisible bool
	showSidebar bool

	// import sidebar
	cwd string
	l   list.Model

	// paste mode
	pasteMode bool
	ta        textarea.Model

	// attributes table
	showAttrs bool
	tbl       table.Model

	// inspect popup
	inspectPopup string

	// pointer state
	dragging    bool
	hoverHasGeo bool
	hoverLon    float64
	hoverLat    float64
}

// NewEditor builds an editor for taskID. Loading starts in Init.
func NewEditor(taskID string, deps Deps) Editor {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	eng := editor.New()
	mv := mapview.New()
	opts := append([]session.Option{session.WithLogger(logger)}, deps.Session...)
	e := Editor{
		deps:        deps,
		logger:      logger,
		taskID:      taskID,
		eng:         eng,
		m:           mv,
		sess:        session.New(eng, mv, opts...),
		status:      "loading task " + taskID,
		helpVisible: true,
		cwd:         deps.Dir,
	}
	if e.cwd == "" {
		e.cwd, _ = os.Getwd()
	}
	e.spin = spinner.New(spinner.WithSpinner(spinner.Dot))

	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	e.l = list.New(nil, d, 0, 0)
	e.l.Title = "Import"
	e.l.SetShowHelp(false)
	e.l.SetShowStatusBar(false)
	e.l.SetFilteringEnabled(true)

	e.ta = textarea.New()
	e.ta.Placeholder = "Paste a LINESTRING or MULTILINESTRING. Enter adds it; Esc cancels."
	e.ta.CharLimit = 0
	e.ta.SetWidth(50)
	e.ta.SetHeight(6)

	e.tbl = table.New(table.WithFocused(true))
	e.tbl.SetHeight(12)
	return e
}

func (m Editor) Init() tea.Cmd {
	if m.deps.Loader == nil || !m.sess.Begin(m.taskID) {
		return nil
	}
	return tea.Batch(m.spin.Tick, loadTask(m.sess, m.deps.Loader, m.taskID))
}

// Session exposes the editor's session.
func (m Editor) Session() *session.Session { return m.sess }

// Close tears the session down.
func (m Editor) Close() { m.sess.Close() }

func (m Editor) busy() bool {
	return m.saving || m.sess.State() == session.StateLoading
}

func (m Editor) ready() bool { return m.sess.State() == session.StateReady }

// mapRect is the map viewport position and size in terminal cells.
func (m Editor) mapRect() (x, y, w, h int) {
	contentHeight := max(4, m.height-headerHeight-footerHeight)
	contentWidth := max(10, m.width)
	w = contentWidth
	if m.showSidebar {
		x = sidebarWidth + 1
		w = contentWidth - sidebarWidth - 1
	}
	return x, headerHeight, max(10, w), contentHeight
}

// resize pushes the layout into the map and the sidebar.
func (m *Editor) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	_, _, w, h := m.mapRect()
	m.m.SetSize(w, h)
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, h-2)
	}
}
