package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadedit/internal/session"
)

func sendApp(a App, msg tea.Msg) (App, tea.Cmd) {
	next, cmd := a.Update(msg)
	return next.(App), cmd
}

func TestApp_DashboardOpensAndClosesEditor(t *testing.T) {
	api := &fakeAPI{rows: testRows()}
	a := NewDashboardApp(api, testDeps(t, &fakeTasks{task: oneRoad()}, &fakeSaver{}))
	a, _ = sendApp(a, tea.WindowSizeMsg{Width: 100, Height: 30})
	a, _ = sendApp(a, find[tasksMsg](t, collect(a.Init())))
	gen := a.dash.gen

	a, cmd := sendApp(a, openEditorMsg{taskID: "c1"})
	require.True(t, a.Editing())
	assert.Equal(t, gen+1, a.dash.gen)
	w, h := a.ed.m.Size()
	assert.Equal(t, 100, w)
	assert.Equal(t, 30-headerHeight-footerHeight, h)

	loaded := find[loadedMsg](t, collect(cmd))
	a, _ = sendApp(a, loaded)
	sess := a.ed.Session()
	assert.Equal(t, session.StateReady, sess.State())

	_, cmd = sendApp(a, pollMsg{gen: gen})
	assert.Nil(t, cmd)

	a, cmd = sendApp(a, closeEditorMsg{})
	assert.False(t, a.Editing())
	assert.Equal(t, session.StateClosed, sess.State())
	require.NotNil(t, cmd)
	find[tasksMsg](t, collect(cmd))
}

func TestApp_StandaloneEditorQuits(t *testing.T) {
	a := NewEditorApp("t1", testDeps(t, &fakeTasks{task: oneRoad()}, &fakeSaver{}))
	require.True(t, a.Editing())

	a, cmd := sendApp(a, closeEditorMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, session.StateClosed, a.ed.Session().State())
}

func TestApp_DropsLoadAfterLeavingEditor(t *testing.T) {
	a := NewDashboardApp(&fakeAPI{rows: testRows()}, testDeps(t, &fakeTasks{task: oneRoad()}, &fakeSaver{}))
	a, cmd := sendApp(a, openEditorMsg{taskID: "c1"})
	loaded := find[loadedMsg](t, collect(cmd))
	a, _ = sendApp(a, closeEditorMsg{})

	_, cmd = sendApp(a, loaded)
	assert.Nil(t, cmd)
	assert.Equal(t, session.StateClosed, loaded.sess.State())
}
