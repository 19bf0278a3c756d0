package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projecthub/internal/monitor"
)

var dashboardInterval time.Duration

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().DurationVar(&dashboardInterval, "interval", 2*time.Second, "Refresh interval")
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Open the interactive project switcher",
	Long: `Open a terminal dashboard listing every project.

Keys:
  up/down, j/k   move the cursor
  enter          switch to the selected project
  r              reload the active project
  q              quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		model := monitor.NewModel(newClient(), serverURL, dashboardInterval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err := p.Run()
		return err
	},
}
