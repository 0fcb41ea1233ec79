package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List all sessions in this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openProjectStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.ListSessions()
		if err != nil {
			return err
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Status", "Strategy", "Created", "Request"})
		for _, s := range sessions {
			request := s.RequestText
			if len(request) > 60 {
				request = request[:60] + "..."
			}
			tw.AppendRow(table.Row{
				s.ID, s.Status, s.MergeStrategy,
				s.CreatedAt.Format("2006-01-02 15:04"), request,
			})
		}
		tw.Render()
		return nil
	},
}
