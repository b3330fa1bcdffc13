package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/tui"
)

func (c *cli) canvasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canvas",
		Short: "Open the interactive canvas in the terminal",
		Long: "Open the active topology in a full-screen canvas. Drag devices with the\n" +
			"mouse, click two devices to link them, right-click for the device menu,\n" +
			"press h, s or r to drop a host, switch or router at the pointer.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.session(ctx)
			if err != nil {
				return err
			}
			stopMetrics := serveMetrics(a.Settings.Metrics.Addr, a.Registry, a.Logger)
			defer stopMetrics()

			title, _ := currentTopology(a)
			if a.Topology.CurrentTopologyID() == 0 {
				title = ""
			}
			model := tui.NewModel(ctx, a.Canvas, a.Notices, a.Redirects, title)
			p := tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithAltScreen(),
				tea.WithMouseAllMotion(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			stopForward := tui.Forward(a.Bus, p.Send)
			defer stopForward()
			final, err := p.Run()
			if err != nil {
				return fmt.Errorf("canvas: %w", err)
			}
			if m, ok := final.(tui.Model); ok && m.Expired() {
				return remote.ErrAuthExpired
			}
			return nil
		},
	}
}
