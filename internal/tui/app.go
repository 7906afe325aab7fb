package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// App switches between the task dashboard and the editor.
type App struct {
	deps Deps

	dash       Dashboard
	hasDash    bool
	ed         Editor
	editing    bool
	standalone bool

	size tea.WindowSizeMsg
}

// NewEditorApp opens the editor on taskID; leaving it quits.
func NewEditorApp(taskID string, deps Deps) App {
	return App{deps: deps, ed: NewEditor(taskID, deps), editing: true, standalone: true}
}

// NewDashboardApp starts on the dashboard; leaving the editor returns to it.
func NewDashboardApp(api TaskAPI, deps Deps, opts ...DashboardOption) App {
	if deps.Logger != nil {
		opts = append([]DashboardOption{WithDashboardLogger(deps.Logger)}, opts...)
	}
	return App{deps: deps, dash: NewDashboard(api, opts...), hasDash: true}
}

func (a App) Init() tea.Cmd {
	if a.editing {
		return a.ed.Init()
	}
	return a.dash.Init()
}

// Editing reports whether the editor is on screen.
func (a App) Editing() bool { return a.editing }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.size = msg
		var cmds []tea.Cmd
		if a.hasDash {
			cmds = append(cmds, a.updateDash(msg))
		}
		if a.editing {
			cmds = append(cmds, a.updateEditor(msg))
		}
		return a, tea.Batch(cmds...)
	case openEditorMsg:
		if a.editing {
			return a, nil
		}
		a.dash.Stop()
		a.ed = NewEditor(msg.taskID, a.deps)
		a.editing = true
		if a.size.Width > 0 {
			a.updateEditor(a.size)
		}
		return a, a.ed.Init()
	case closeEditorMsg:
		if !a.editing {
			return a, nil
		}
		a.ed.Close()
		a.editing = false
		if a.standalone || !a.hasDash {
			return a, tea.Quit
		}
		return a, a.dash.Resume()
	case tasksMsg, pollMsg, statusMsg, vectorizeMsg:
		if !a.hasDash {
			return a, nil
		}
		return a, a.updateDash(msg)
	case loadedMsg, savedMsg:
		if !a.editing {
			return a, nil
		}
		return a, a.updateEditor(msg)
	}
	if a.editing {
		return a, a.updateEditor(msg)
	}
	if a.hasDash {
		return a, a.updateDash(msg)
	}
	return a, nil
}

func (a *App) updateEditor(msg tea.Msg) tea.Cmd {
	next, cmd := a.ed.Update(msg)
	a.ed = next.(Editor)
	return cmd
}

func (a *App) updateDash(msg tea.Msg) tea.Cmd {
	next, cmd := a.dash.Update(msg)
	a.dash = next.(Dashboard)
	return cmd
}

func (a App) View() string {
	if a.editing {
		return a.ed.View()
	}
	if a.hasDash {
		return a.dash.View()
	}
	return ""
}
