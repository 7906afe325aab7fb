package tui

import (
	"log/slog"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	table "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"roadedit/internal/backend"
	"roadedit/internal/geom"
	"roadedit/internal/logging"
)

const (
	DefaultPollInterval   = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Dashboard lists backend tasks and polls them on a fixed interval.
type Dashboard struct {
	api      TaskAPI
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	// gen invalidates in-flight polls: a result or tick from an older
	// generation is dropped.
	gen     int
	rows    []backend.TaskRow
	loading bool
	status  string

	tbl  table.Model
	spin spinner.Model

	// coordinate entry for a new prediction
	form     textinput.Model
	formOpen bool

	width  int
	height int
}

type DashboardOption func(*Dashboard)

func WithPollInterval(d time.Duration) DashboardOption {
	return func(m *Dashboard) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithRequestTimeout(d time.Duration) DashboardOption {
	return func(m *Dashboard) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithDashboardLogger(l *slog.Logger) DashboardOption {
	return func(m *Dashboard) { m.logger = l }
}

func NewDashboard(api TaskAPI, opts ...DashboardOption) Dashboard {
	m := Dashboard{
		api:      api,
		interval: DefaultPollInterval,
		timeout:  DefaultRequestTimeout,
		logger:   logging.NewNop(),
		loading:  true,
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.form = textinput.New()
	m.form.Prompt = "bbox> "
	m.form.Placeholder = "minLon,minLat,maxLon,maxLat"
	m.form.CharLimit = 96
	m.tbl = table.New(
		table.WithColumns([]table.Column{
			{Title: "Task", Width: 38},
			{Title: "Status", Width: 9},
			{Title: "Created", Width: 20},
			{Title: "Child", Width: 38},
			{Title: "Child status", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return m
}

func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, fetchTasks(m.api, m.gen, m.timeout))
}

// Stop invalidates pending polls. Call it when the dashboard is left.
func (m *Dashboard) Stop() {
	m.gen++
	m.loading = false
}

// Resume restarts polling with an immediate fetch.
func (m *Dashboard) Resume() tea.Cmd {
	m.gen++
	m.loading = true
	return tea.Batch(m.spin.Tick, fetchTasks(m.api, m.gen, m.timeout))
}

// Rows returns the rows currently shown.
func (m Dashboard) Rows() []backend.TaskRow { return m.rows }

func (m Dashboard) selected() (backend.TaskRow, bool) {
	i := m.tbl.Cursor()
	if i < 0 || i >= len(m.rows) {
		return backend.TaskRow{}, false
	}
	return m.rows[i], true
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tbl.SetWidth(max(20, msg.Width-4))
		m.tbl.SetHeight(max(3, msg.Height-6))
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tasksMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.logger.Warn("list tasks failed", "err", msg.err)
			m.status = "refresh failed: " + msg.err.Error()
		} else {
			m.setRows(msg.rows)
			m.status = time.Now().Format("15:04:05") + " updated"
		}
		return m, schedulePoll(m.gen, m.interval)
	case pollMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spin.Tick, fetchTasks(m.api, m.gen, m.timeout))
	case statusMsg:
		if msg.err != nil {
			m.status = "status " + msg.taskID + ": " + msg.err.Error()
			return m, nil
		}
		m.applyStatus(msg.taskID, msg.status)
		m.status = msg.taskID + ": " + msg.status
		return m, nil
	case vectorizeMsg:
		if msg.err != nil {
			m.status = "vectorize " + msg.parent + ": " + msg.err.Error()
			return m, nil
		}
		m.addChild(msg.parent, msg.job)
		m.status = "vectorization queued for " + msg.parent
		return m, nil
	case predictMsg:
		if msg.err != nil {
			m.logger.Warn("predict by coord failed", "bbox", msg.bbox.QueryParam(), "err", msg.err)
			m.status = "predict " + msg.bbox.String() + ": " + msg.err.Error()
			return m, nil
		}
		m.addTask(msg.job)
		m.status = "prediction queued for " + msg.bbox.String()
		return m, nil
	case tea.KeyMsg:
		if m.formOpen {
			return m.updateForm(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.Resume()
		case "n":
			m.formOpen = true
			m.form.Reset()
			return m, m.form.Focus()
		case "u":
			if row, ok := m.selected(); ok {
				return m, refreshStatus(m.api, row.EditTarget(), m.timeout)
			}
			return m, nil
		case "v":
			if row, ok := m.selected(); ok {
				return m, vectorize(m.api, row.TaskID, m.timeout)
			}
			return m, nil
		case "enter":
			if row, ok := m.selected(); ok {
				id := row.EditTarget()
				return m, func() tea.Msg { return openEditorMsg{taskID: id} }
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m Dashboard) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closeForm()
		m.status = "prediction cancelled"
		return m, nil
	case "enter":
		b, err := geom.ParseBBox(m.form.Value())
		if err != nil {
			m.form.Err = err
			m.status = err.Error()
			return m, nil
		}
		m.closeForm()
		m.status = "queueing prediction for " + b.String()
		return m, predictByCoord(m.api, b, m.timeout)
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m *Dashboard) closeForm() {
	m.formOpen = false
	m.form.Err = nil
	m.form.Blur()
}

func (m *Dashboard) setRows(rows []backend.TaskRow) {
	m.rows = rows
	trows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		trows = append(trows, table.Row{r.TaskID, r.Status, r.CreatedAt, r.ChildID, r.ChildStatus})
	}
	m.tbl.SetRows(trows)
}

func (m *Dashboard) applyStatus(taskID, status string) {
	rows := slices.Clone(m.rows)
	for i := range rows {
		switch taskID {
		case rows[i].TaskID:
			rows[i].Status = status
		case rows[i].ChildID:
			rows[i].ChildStatus = status
		}
	}
	m.setRows(rows)
}

// addChild shows a queued job before the next poll confirms it.
func (m *Dashboard) addChild(parent string, job *backend.Job) {
	if job == nil {
		return
	}
	status := job.Status
	if status == "" {
		status = backend.StatusPending
	}
	rows := slices.Clone(m.rows)
	for i, r := range rows {
		if r.TaskID != parent {
			continue
		}
		child := r
		child.ChildID, child.ChildStatus, child.ChildCreatedAt = job.TaskID, status, ""
		if r.ChildID == "" {
			rows[i] = child
		} else {
			rows = slices.Insert(rows, i, child)
		}
		break
	}
	m.setRows(rows)
}

// addTask shows a queued prediction at the top until the next poll.
func (m *Dashboard) addTask(job *backend.Job) {
	if job == nil || job.TaskID == "" {
		return
	}
	status := job.Status
	if status == "" {
		status = backend.StatusPending
	}
	row := backend.TaskRow{TaskID: job.TaskID, Status: status, CreatedAt: time.Now().Format(time.RFC3339)}
	m.setRows(slices.Insert(slices.Clone(m.rows), 0, row))
	m.tbl.SetCursor(0)
}

func (m Dashboard) View() string {
	header := titleStyle.Render(" roadedit ─ tasks ")
	if m.loading {
		header += " " + m.spin.View()
	}
	body := boxStyle.Render(m.tbl.View())
	row, ok := m.selected()
	detail := ""
	if ok {
		detail = statusColor(row.Status).Render(row.Status)
		if row.ChildID != "" {
			detail += dimStyle.Render(" → ") + statusColor(row.ChildStatus).Render(row.ChildStatus)
		}
	}
	help := dimStyle.Render("  ↑↓ move  Enter edit  n new  u status  v vectorize  r refresh  q quit")
	if m.formOpen {
		help = dimStyle.Render("  Enter queue  Esc cancel")
	}
	footer := lipgloss.JoinHorizontal(lipgloss.Bottom, dimStyle.Render(" "+m.status+" "), detail, help)
	parts := []string{header, body}
	if m.formOpen {
		parts = append(parts, " "+m.form.View())
	}
	parts = append(parts, footer)
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
