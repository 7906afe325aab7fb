package tui

import (
	"errors"
	"fmt"
	"strings"

	list "github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"roadedit/internal/backend"
	"roadedit/internal/editor"
	"roadedit/internal/geom"
	"roadedit/internal/session"
)

const panStep = 2

func (m Editor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case loadedMsg:
		return m.applyLoaded(msg), nil
	case savedMsg:
		if msg.sess != m.sess || !m.sess.Alive() {
			return m, nil
		}
		m.saving = false
		m.status = describeSave(msg.rep)
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	case tea.MouseMsg:
		m.updateMouse(msg)
		return m, nil
	}
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Editor) applyLoaded(msg loadedMsg) Editor {
	if msg.sess != m.sess || !m.sess.Alive() {
		return m
	}
	if err := m.sess.Apply(msg.res, msg.err); err != nil {
		m.status = "load failed: " + describeLoadErr(err)
		return m
	}
	m.status = "task " + m.taskID
	if msg.res.Background == nil {
		m.status += "  (no imagery)"
	}
	return m
}

func (m Editor) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.sess.State() == session.StateFailed {
		if key == "q" || key == "esc" {
			return m, closeEditor
		}
		return m, nil
	}
	if m.showSidebar && m.l.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	if m.pasteMode {
		return m.updatePaste(msg)
	}
	if m.sess.Tools().Pending() {
		switch key {
		case "y", "enter":
			m.status = describeOutcome(m.sess.Tools().Resolve(true))
		case "n", "esc":
			m.sess.Tools().Resolve(false)
			m.status = ""
		}
		return m, nil
	}
	if m.eng.Mode() == editor.ModeDrawLineString {
		switch key {
		case "enter":
			m.eng.Finish()
			return m, nil
		case "esc":
			m.eng.Cancel()
			m.status = "drawing cancelled"
			return m, nil
		}
	}

	switch key {
	case "q":
		return m, closeEditor
	case "esc":
		m.inspectPopup = ""
		m.showAttrs = false
	case "d":
		m.activate(session.ToolDrawLine)
	case "e":
		m.activate(session.ToolEdit)
	case "x", "delete", "backspace":
		m.activate(session.ToolDelete)
	case "s":
		return m.save()
	case "1":
		m.toggle(session.LayerImagery, "imagery")
	case "2":
		m.toggle(session.LayerHelper, "vertices")
	case "3":
		m.toggle(session.LayerBBox, "bbox")
	case "+", "=":
		m.m.ZoomBy(0.5)
		m.status = fmt.Sprintf("zoom: %.1f", m.m.Zoom())
	case "-", "_":
		m.m.ZoomBy(-0.5)
		m.status = fmt.Sprintf("zoom: %.1f", m.m.Zoom())
	case "f":
		m.sess.FitToBBox()
	case "tab":
		m.showSidebar = !m.showSidebar
		if m.showSidebar {
			m.refreshDir()
		}
		m.resize()
	case "p":
		if !m.ready() {
			return m, nil
		}
		m.pasteMode = true
		m.ta.SetValue("")
		m.status = "paste mode"
		return m, m.ta.Focus()
	case "h":
		m.helpVisible = !m.helpVisible
	case "a":
		m.showAttrs = !m.showAttrs
		if m.showAttrs {
			m.refreshAttrs()
		}
	case "i":
		if m.inspectPopup != "" {
			m.inspectPopup = ""
		} else {
			m.inspectPopup = m.inspect()
		}
	case "enter":
		if m.showSidebar {
			if it, ok := m.l.SelectedItem().(fileItem); ok {
				m.importPath(it.path)
			}
		}
	case "up", "down", "left", "right":
		if m.showSidebar || m.showAttrs {
			break
		}
		dx, dy := 0, 0
		switch key {
		case "up":
			dy = -panStep
		case "down":
			dy = panStep
		case "left":
			dx = -panStep * 2
		case "right":
			dx = panStep * 2
		}
		m.m.Pan(dx, dy)
		return m, nil
	}
	if m.showAttrs {
		var cmd tea.Cmd
		m.tbl, cmd = m.tbl.Update(msg)
		return m, cmd
	}
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Editor) updatePaste(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.pasteMode = false
		m.ta.Blur()
		m.status = ""
		return m, nil
	case "enter":
		w := strings.TrimSpace(m.ta.Value())
		if w == "" {
			m.status = "paste: empty"
			return m, nil
		}
		lines, err := geom.ParseLinesWKT(w)
		if err != nil {
			m.status = "wkt error: " + err.Error()
			return m, nil
		}
		res, err := m.sess.Import(geom.LinesCollection(lines))
		if err != nil {
			m.status = "paste: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("added %d road(s)", len(res.IDs)) + describeImport(res)
		m.pasteMode = false
		m.ta.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

func (m *Editor) activate(t session.Tool) {
	out, err := m.sess.Tools().Activate(t)
	if err != nil {
		m.logger.Warn("tool activation failed", "tool", t, "err", err)
		m.status = "error: " + err.Error()
		return
	}
	if s := describeOutcome(out); s != "" {
		m.status = s
		return
	}
	if m.ready() {
		m.status = "tool: " + string(m.sess.Tools().State())
	}
}

func (m *Editor) toggle(layer, name string) {
	visible, ok := m.m.ToggleLayer(layer)
	if !ok {
		m.status = "no " + name + " layer"
		return
	}
	m.status = fmt.Sprintf("%s: %v", name, visible)
}

func (m Editor) save() (tea.Model, tea.Cmd) {
	if m.saving || m.deps.Gateway == nil {
		return m, nil
	}
	payload, err := m.sess.Payload()
	if err != nil {
		m.status = "save: " + err.Error()
		return m, nil
	}
	m.saving = true
	m.status = "saving"
	return m, tea.Batch(m.spin.Tick, saveTask(m.sess, m.deps.Gateway, m.taskID, payload))
}

func (m *Editor) updateMouse(msg tea.MouseMsg) {
	ox, oy, w, h := m.mapRect()
	cx, cy := msg.X-ox, msg.Y-oy
	inside := cx >= 0 && cx < w && cy >= 0 && cy < h
	if !inside {
		m.hoverHasGeo = false
		if msg.Action == tea.MouseActionRelease && m.dragging {
			m.dragging = false
			m.eng.Release()
		}
		return
	}
	p := m.m.Unproject(cx, cy)
	m.hoverHasGeo = true
	m.hoverLon, m.hoverLat = p.Lon(), p.Lat()

	if !m.ready() || m.pasteMode || m.showAttrs {
		return
	}
	tol := m.m.CellSpan()
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.m.ZoomBy(0.5)
	case msg.Button == tea.MouseButtonWheelDown:
		m.m.ZoomBy(-0.5)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.inspectPopup = ""
		if m.eng.Press(p, tol) {
			m.dragging = true
			return
		}
		m.eng.Click(p, tol)
	case msg.Action == tea.MouseActionMotion && m.dragging:
		m.eng.Drag(p)
	case msg.Action == tea.MouseActionRelease && m.dragging:
		m.dragging = false
		m.eng.Release()
	}
}

func closeEditor() tea.Msg { return closeEditorMsg{} }

func describeOutcome(o session.Outcome) string {
	switch {
	case o.Notice != "":
		return o.Notice
	case o.Prompt != "":
		return o.Prompt + " (y/n)"
	case o.Deleted && o.Action == session.ActionTrashVertices:
		return fmt.Sprintf("deleted %d point(s)", o.Count)
	case o.Deleted:
		return fmt.Sprintf("deleted %d road(s)", o.Count)
	}
	return ""
}

func describeSave(rep session.SaveReport) string {
	var parts []string
	switch {
	case rep.Posted:
		parts = append(parts, "saved to backend")
	case rep.PostErr != nil:
		parts = append(parts, "save failed: "+rep.PostErr.Error())
	}
	switch {
	case rep.ExportErr != nil:
		parts = append(parts, "export failed: "+rep.ExportErr.Error())
	case rep.ExportPath != "":
		parts = append(parts, "exported "+rep.ExportPath)
	}
	return strings.Join(parts, "; ")
}

func describeLoadErr(err error) string {
	switch {
	case errors.Is(err, backend.ErrTaskPending):
		return "task is still processing, try again later"
	case errors.Is(err, backend.ErrNotFound):
		return "task not found"
	}
	return err.Error()
}
