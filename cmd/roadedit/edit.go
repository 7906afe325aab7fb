package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"roadedit/internal/tui"
)

var editCmd = &cobra.Command{
	Use:   "edit <task_id>",
	Short: "Open the road editor on one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("export-dir") {
			cfg.ExportDir, _ = cmd.Flags().GetString("export-dir")
		}
		if cmd.Flags().Changed("save-mode") {
			cfg.SaveMode, _ = cmd.Flags().GetString("save-mode")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, closer, err := openLog()
		if err != nil {
			return err
		}
		defer closer.Close()

		deps, err := editorDeps(newBackend(logger), logger)
		if err != nil {
			return err
		}
		logger.Info("starting editor", "task_id", args[0], "backend", cfg.BackendURL, "save_mode", cfg.SaveMode)
		_, err = tea.NewProgram(tui.NewEditorApp(args[0], deps), tea.WithAltScreen(), tea.WithMouseAllMotion()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().String("export-dir", "", "Directory for roads_<task_id>.json exports")
	editCmd.Flags().String("save-mode", "", "post_and_export or export_only")
}
