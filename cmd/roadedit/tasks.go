package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"roadedit/internal/tui"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Browse backend tasks and open them in the editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := openLog()
		if err != nil {
			return err
		}
		defer closer.Close()

		client := newBackend(logger)
		deps, err := editorDeps(client, logger)
		if err != nil {
			return err
		}
		app := tui.NewDashboardApp(client, deps,
			tui.WithPollInterval(cfg.PollInterval),
			tui.WithRequestTimeout(cfg.RequestTimeout))
		_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseAllMotion()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
