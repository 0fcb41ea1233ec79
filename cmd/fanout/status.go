package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gridley-labs/fanout/internal/session"
	"github.com/gridley-labs/fanout/internal/state"
	"github.com/gridley-labs/fanout/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show a session's tasks, workers, and merge results",
	Long: `Display the persisted state of a session.

Without an argument, shows the most recent session. Every failed task is
listed with its classified failure reason and retained log path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, _, err := openProjectStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sessionID := ""
	if len(args) == 1 {
		sessionID = args[0]
	} else {
		sessions, err := store.ListSessions()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found. Run 'fanout run <request>' first.")
			return nil
		}
		// ListSessions returns newest first.
		sessionID = newestSession(sessions)
	}

	manager := session.NewManager(session.Options{Store: store, Logf: func(string, ...any) {}})
	printSessionSummary(manager, sessionID)
	return nil
}

// newestSession picks the most recently created session. The store orders
// by created_at descending but we sort here too, so the choice does not
// depend on query order.
func newestSession(sessions []models.Session) string {
	newest := sessions[0]
	for _, s := range sessions[1:] {
		if s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	return newest.ID
}

// openProjectStore opens this project's state database.
func openProjectStore() (state.StateStore, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("get working directory: %w", err)
	}
	repoPath, err := findGitRoot(cwd)
	if err != nil {
		return nil, "", err
	}

	dbPath := state.ProjectDBPath(repoPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("no fanout state found at %s", dbPath)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("open state database: %w", err)
	}
	return store, repoPath, nil
}

// printSessionSummary renders the full picture of one session.
func printSessionSummary(manager *session.Manager, sessionID string) {
	status, err := manager.Load(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load session %s: %v\n", sessionID, err)
		return
	}

	fmt.Printf("\nSession %s  [%s]\n", status.Session.ID, colorStatus(status.Session.Status))
	fmt.Printf("Request: %s\n", status.Session.RequestText)
	fmt.Printf("Strategy: %s, base branch: %s\n\n", status.Session.MergeStrategy, status.Session.BaseBranch)

	workersByTask := map[string]models.Worker{}
	for _, w := range status.Workers {
		workersByTask[w.TaskID] = w
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Task", "Priority", "Status", "Reason", "Commits", "Log"})
	for _, t := range status.Tasks {
		reason, commits, logPath := "", "", ""
		if w, ok := workersByTask[t.ID]; ok {
			if w.FailureReason != models.FailureNone {
				reason = w.FailureReason.Human()
			}
			commits = fmt.Sprintf("%d", w.CommitCount)
			logPath = w.LogPath
		}
		tw.AppendRow(table.Row{t.Name, t.Priority, t.Status, reason, commits, logPath})
	}
	tw.Render()

	if len(status.Results) == 0 {
		return
	}
	fmt.Println()
	rw := table.NewWriter()
	rw.SetOutputMirror(os.Stdout)
	rw.AppendHeader(table.Row{"Task", "Outcome", "Branch", "Artifact"})
	for _, r := range status.Results {
		taskID := r.TaskID
		if taskID == "" {
			taskID = "(session)"
		}
		rw.AppendRow(table.Row{taskID, r.Outcome, r.Branch, r.ArtifactRef})
	}
	rw.Render()
}

func colorStatus(s models.SessionStatus) string {
	switch s {
	case models.SessionCompleted:
		return color.GreenString(string(s))
	case models.SessionFailed, models.SessionInterrupted:
		return color.RedString(string(s))
	case models.SessionPartialFailure:
		return color.YellowString(string(s))
	default:
		return color.CyanString(string(s))
	}
}
