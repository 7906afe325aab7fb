package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"roadedit/internal/editor"
	"roadedit/internal/session"
)

func (m Editor) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	_, _, mapWidth, mapHeight := m.mapRect()
	contentWidth := max(10, m.width)
	contentHeight := mapHeight

	header := titleStyle.Render(" roadedit ─ task " + m.taskID + " ")
	if t := m.toolLabel(); t != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", toolStyle.Render(t))
	}
	header = lipgloss.NewStyle().Width(contentWidth).Render(header)

	var mapView string
	switch {
	case m.sess.State() == session.StateFailed:
		box := errorStyle.Render("Could not load task " + m.taskID + "\n\n" + describeLoadErr(m.sess.Err()) + "\n\nq back")
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, box)
	case m.sess.State() == session.StateLoading:
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, m.spin.View()+" loading task "+m.taskID)
	case m.showAttrs:
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		if colW == 0 {
			colW = min(60, contentWidth-6)
		}
		maxW := min(mapWidth, max(32, colW))
		m.tbl.SetWidth(maxW - 4)
		m.tbl.SetHeight(min(mapHeight-2, 20))
		attrsBox := boxStyle.Width(maxW).Render(m.tbl.View())
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, attrsBox)
	case m.pasteMode:
		m.ta.SetWidth(mapWidth)
		m.ta.SetHeight(min(mapHeight, 12))
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(mapHeight).Render(m.ta.View())
	default:
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(mapHeight).Render(m.m.Render())
	}

	if m.sess.Tools().Pending() {
		box := promptStyle.Render(session.PromptDeleteLines + "\n\ny delete   n keep")
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, box)
	}

	popup := ""
	if m.inspectPopup != "" && !m.showAttrs {
		maxPopupW := max(20, min(48, contentWidth/2))
		box := boxStyle.MaxWidth(maxPopupW).Render(m.inspectPopup)
		popup = lipgloss.Place(contentWidth, lipgloss.Height(box), lipgloss.Left, lipgloss.Top, box)
	}

	body := mapView
	if m.showSidebar {
		sidebar := lipgloss.NewStyle().Width(sidebarWidth).Height(contentHeight).Render(m.l.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	}

	status := m.status
	if m.saving {
		status = m.spin.View() + " " + status
	}
	left := lipgloss.JoinHorizontal(lipgloss.Bottom, dimStyle.Render(" "+status+" "), m.renderHelp())
	coords := ""
	if m.hoverHasGeo {
		coords = dimStyle.Render(fmt.Sprintf("  lon=%.5f lat=%.5f  ", m.hoverLon, m.hoverLat))
	}
	spacerW := max(0, contentWidth-lipgloss.Width(left)-lipgloss.Width(coords))
	right := lipgloss.Place(spacerW+lipgloss.Width(coords), 1, lipgloss.Right, lipgloss.Center, coords)
	footer := lipgloss.NewStyle().Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, left, right))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, popup, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

func (m Editor) toolLabel() string {
	if !m.ready() {
		return ""
	}
	if m.eng.Mode() == editor.ModeDrawLineString {
		return fmt.Sprintf("[draw %d pts]", m.eng.DrawingVertices())
	}
	return "[" + string(m.sess.Tools().State()) + "]"
}

func (m Editor) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"d draw",
		"e edit",
		"x delete",
		"s save",
		"p paste",
		"Tab import",
		"a attrs",
		"i inspect",
		"1/2/3 layers",
		"f fit",
		"q back",
	}
	if m.eng.Mode() == editor.ModeDrawLineString {
		keys = []string{"click add point", "Enter finish", "Esc cancel"}
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}

// inspect summarizes the session for the popup.
func (m Editor) inspect() string {
	fc := m.eng.GetAll()
	vertices := len(session.ProjectVertices(fc).Features)
	bbox := "none"
	if b, ok := m.sess.BBox(); ok {
		bbox = b.String()
		if _, known := m.sess.KnownBBox(); !known {
			bbox += " (fallback)"
		}
	}
	mode := "post_and_export"
	if m.deps.Gateway != nil {
		mode = string(m.deps.Gateway.Mode())
	}
	c := m.m.Center()
	meta := []string{
		"task: " + m.taskID,
		"state: " + m.sess.State().String(),
		"bbox: " + bbox,
		fmt.Sprintf("roads: %d  vertices: %d", len(fc.Features), vertices),
		fmt.Sprintf("selected: %d", len(m.eng.SelectedIDs())),
		"save: " + mode,
		fmt.Sprintf("view: %.5f,%.5f z%.1f", c.Lon(), c.Lat(), m.m.Zoom()),
	}
	return strings.Join(meta, "\n")
}
