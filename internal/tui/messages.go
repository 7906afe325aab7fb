package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"roadedit/internal/backend"
	"roadedit/internal/geom"
	"roadedit/internal/session"
)

// Completion messages carry the session that issued them so the editor can
// drop results that arrive after the session was closed or replaced.
type loadedMsg struct {
	sess *session.Session
	res  *session.LoadResult
	err  error
}

type savedMsg struct {
	sess *session.Session
	rep  session.SaveReport
}

// openEditorMsg asks the app to open the editor on a task.
type openEditorMsg struct{ taskID string }

// closeEditorMsg asks the app to leave the editor.
type closeEditorMsg struct{}

type tasksMsg struct {
	gen  int
	rows []backend.TaskRow
	err  error
}

type pollMsg struct{ gen int }

type statusMsg struct {
	taskID string
	status string
	err    error
}

type vectorizeMsg struct {
	parent string
	job    *backend.Job
	err    error
}

type predictMsg struct {
	bbox geom.BBox
	job  *backend.Job
	err  error
}

func loadTask(sess *session.Session, loader *session.Loader, taskID string) tea.Cmd {
	return func() tea.Msg {
		res, err := loader.Fetch(sess.Context(), taskID)
		return loadedMsg{sess: sess, res: res, err: err}
	}
}

func saveTask(sess *session.Session, gw *session.Gateway, taskID string, payload []byte) tea.Cmd {
	return func() tea.Msg {
		return savedMsg{sess: sess, rep: gw.Save(sess.Context(), taskID, payload)}
	}
}

// TaskAPI is the part of the backend the dashboard needs.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]backend.TaskRow, error)
	RefreshStatus(ctx context.Context, taskID string) (string, error)
	Vectorize(ctx context.Context, taskID string) (*backend.Job, error)
	PredictByCoord(ctx context.Context, b geom.BBox) (*backend.Job, error)
}

func fetchTasks(api TaskAPI, gen int, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := api.ListTasks(ctx)
		return tasksMsg{gen: gen, rows: rows, err: err}
	}
}

func schedulePoll(gen int, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg { return pollMsg{gen: gen} })
}

func refreshStatus(api TaskAPI, taskID string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := api.RefreshStatus(ctx, taskID)
		return statusMsg{taskID: taskID, status: st, err: err}
	}
}

func vectorize(api TaskAPI, taskID string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		job, err := api.Vectorize(ctx, taskID)
		return vectorizeMsg{parent: taskID, job: job, err: err}
	}
}

func predictByCoord(api TaskAPI, b geom.BBox, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		job, err := api.PredictByCoord(ctx, b)
		return predictMsg{bbox: b, job: job, err: err}
	}
}
