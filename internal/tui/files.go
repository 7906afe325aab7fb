package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	list "github.com/charmbracelet/bubbles/list"

	"roadedit/internal/geom"
	"roadedit/internal/session"
)

type fileItem struct {
	title, desc string
	path        string
}

func (f fileItem) Title() string       { return f.title }
func (f fileItem) Description() string { return f.desc }
func (f fileItem) FilterValue() string { return f.title }

// refreshDir lists the importable files of the sidebar directory.
func (m *Editor) refreshDir() {
	entries, err := os.ReadDir(m.cwd)
	if err != nil {
		m.status = "read dir error: " + err.Error()
		return
	}
	var items []list.Item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		p := filepath.Join(m.cwd, name)
		if !geom.Importable(p) {
			continue
		}
		items = append(items, fileItem{title: name, desc: strings.ToLower(filepath.Ext(name)), path: p})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].(fileItem).Title() < items[j].(fileItem).Title() })
	m.l.SetItems(items)
	if len(items) == 0 {
		m.status = "no importable files in " + m.cwd
	}
}

// importPath adds the roads of a file to the session.
func (m *Editor) importPath(p string) {
	fc, err := geom.LoadFile(p)
	if err != nil {
		m.status = "load error: " + err.Error()
		return
	}
	res, err := m.sess.Import(fc)
	if err != nil {
		m.status = "import: " + err.Error()
		return
	}
	m.logger.Info("imported file", "path", p, "count", len(res.IDs))
	m.status = fmt.Sprintf("imported %d road(s) from %s", len(res.IDs), filepath.Base(p)) + describeImport(res)
	if m.showAttrs {
		m.refreshAttrs()
	}
}

func describeImport(res session.ImportResult) string {
	var notes []string
	if res.Skipped > 0 {
		notes = append(notes, fmt.Sprintf("%d non-road skipped", res.Skipped))
	}
	if res.Reassigned > 0 {
		notes = append(notes, fmt.Sprintf("%d new id(s)", res.Reassigned))
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ", ") + ")"
}
