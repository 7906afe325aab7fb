package tui

import (
	"encoding/json"
	"fmt"
	"slices"

	table "github.com/charmbracelet/bubbles/table"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/editor"
)

const maxAttrColWidth = 24

// refreshAttrs rebuilds the table from the selected roads, or from every road
// when nothing is selected.
func (m *Editor) refreshAttrs() {
	cols, rows := buildAttributes(m.eng.GetAll(), m.eng.SelectedIDs())
	if len(rows) == 0 {
		m.showAttrs = false
		m.status = "no roads"
		return
	}
	tcols := make([]table.Column, 0, len(cols))
	for _, c := range cols {
		tcols = append(tcols, table.Column{Title: c, Width: min(len(c)+2, maxAttrColWidth)})
	}
	for _, r := range rows {
		for i, v := range r {
			tcols[i].Width = min(max(tcols[i].Width, len(v)+1), maxAttrColWidth)
		}
	}
	trows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		trows = append(trows, table.Row(r))
	}
	// Clear rows first so the table never sees rows wider than its columns.
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(trows)
}

// buildAttributes unions the property keys of the chosen features into
// columns, after the fixed id and vertex count columns.
func buildAttributes(fc *geojson.FeatureCollection, selected []string) ([]string, [][]string) {
	var feats []*geojson.Feature
	for _, f := range fc.Features {
		if len(selected) == 0 || slices.Contains(selected, editor.FeatureID(f)) {
			feats = append(feats, f)
		}
	}
	var order []string
	seen := map[string]bool{}
	for _, f := range feats {
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	cols := append([]string{"id", "vertices"}, order...)
	rows := make([][]string, 0, len(feats))
	for _, f := range feats {
		n := 0
		if ls, ok := f.Geometry.(orb.LineString); ok {
			n = len(ls)
		}
		vals := []string{editor.FeatureID(f), fmt.Sprint(n)}
		for _, k := range order {
			vals = append(vals, formatValue(f.Properties[k]))
		}
		rows = append(rows, vals)
	}
	return cols, rows
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprint(t)
	default:
		bs, _ := json.Marshal(t)
		return string(bs)
	}
}
