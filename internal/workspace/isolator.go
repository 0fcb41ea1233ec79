// Package workspace manages isolated, branch-scoped working copies for
// workers. Each worker owns exactly one workspace until it is merged or
// discarded.
package workspace

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gridley-labs/fanout/internal/git"
)

// BranchPrefix namespaces every branch this tool creates.
const BranchPrefix = "fanout/"

// Workspace is an isolated working copy bound to one task.
type Workspace struct {
	Path      string    // Absolute path to the worktree directory
	Branch    string    // Branch checked out in this worktree
	SessionID string    // Owning session
	TaskID    string    // Owning task
	CreatedAt time.Time // When the workspace was created
}

// Isolator defines the interface for workspace management.
// This interface allows mocking workspace operations in tests.
type Isolator interface {
	// Acquire creates an isolated workspace for the task on a branch
	// derived from the session and task IDs, forked from baseBranch.
	Acquire(sessionID, taskID, baseBranch string) (*Workspace, error)
	// Release removes the workspace's working copy. The branch is kept so
	// the work remains integrable. If discard is true, uncommitted changes
	// are thrown away.
	Release(ws *Workspace, discard bool) error
	// Unlock unlocks a locked workspace without removing it.
	Unlock(path string) error
	// List returns all workspaces this tool manages in the repository.
	List() ([]*Workspace, error)
	// ListOrphans returns workspaces whose session is not in activeSessions.
	ListOrphans(activeSessions []string) ([]*Workspace, error)
	// CleanupOrphans removes orphaned workspaces, returning the count removed.
	CleanupOrphans(activeSessions []string, verbose func(path string)) (int, error)
	// BaseDir returns the directory workspaces are created under.
	BaseDir() string
}

// Verify Manager implements Isolator at compile time.
var _ Isolator = (*Manager)(nil)

// Manager handles git worktree operations for worker isolation.
type Manager struct {
	baseDir  string // Base directory for worktrees
	repoPath string // Path to the main git repository
	git      git.Runner
	mu       sync.Mutex
}

// BranchFor returns the deterministic branch name for a session/task pair.
// Re-running the same session and task intentionally collides with the
// previous attempt's branch.
func BranchFor(sessionID, taskID string) string {
	return BranchPrefix + sessionID + "/" + taskID
}

// NewManager creates a new workspace Manager. baseDir defaults to
// ~/.cache/fanout/worktrees when empty.
func NewManager(baseDir, repoPath string) (*Manager, error) {
	return NewManagerWithRunner(baseDir, repoPath, git.NewRunner(repoPath))
}

// NewManagerWithRunner creates a Manager with a custom git runner (for testing).
func NewManagerWithRunner(baseDir, repoPath string, runner git.Runner) (*Manager, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".cache", "fanout", "worktrees")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace base directory: %w", err)
	}

	return &Manager{
		baseDir:  baseDir,
		repoPath: repoPath,
		git:      runner,
	}, nil
}

// Acquire creates an isolated workspace for the task. A leftover branch
// from a previous run of the same session/task is deleted first so the
// re-run starts from a clean fork of baseBranch.
func (m *Manager) Acquire(sessionID, taskID, baseBranch string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	branch := BranchFor(sessionID, taskID)
	path := filepath.Join(m.baseDir, sessionID, taskID)

	exists, err := m.git.BranchExists(branch)
	if err != nil {
		return nil, fmt.Errorf("check branch: %w", err)
	}
	if exists {
		if err := m.git.DeleteBranch(branch); err != nil {
			return nil, fmt.Errorf("delete stale branch %s: %w", branch, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create workspace parent directory: %w", err)
	}

	if err := m.git.WorktreeAddNewBranch(path, branch, baseBranch); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{
		Path:      path,
		Branch:    branch,
		SessionID: sessionID,
		TaskID:    taskID,
		CreatedAt: time.Now(),
	}, nil
}

// Release removes the workspace's working copy, keeping its branch.
func (m *Manager) Release(ws *Workspace, discard bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreeRemove(ws.Path, discard); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// Unlock unlocks a locked workspace.
func (m *Manager) Unlock(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreeUnlock(path); err != nil {
		return fmt.Errorf("unlock workspace: %w", err)
	}
	return nil
}

// List returns all fanout-managed workspaces in the repository.
func (m *Manager) List() ([]*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

func (m *Manager) listLocked() ([]*Workspace, error) {
	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	var all []*Workspace
	for _, ws := range parseWorktreeList(output) {
		if ws.SessionID != "" {
			all = append(all, ws)
		}
	}
	return all, nil
}

// parseWorktreeList parses 'git worktree list --porcelain' output and
// extracts session/task ownership from fanout branch names.
func parseWorktreeList(output string) []*Workspace {
	var workspaces []*Workspace
	var current *Workspace

	flush := func() {
		if current != nil {
			workspaces = append(workspaces, current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "worktree ") {
			flush()
			current = &Workspace{Path: strings.TrimPrefix(line, "worktree ")}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
			if rest, ok := strings.CutPrefix(current.Branch, BranchPrefix); ok {
				if session, task, ok := strings.Cut(rest, "/"); ok {
					current.SessionID = session
					current.TaskID = task
				}
			}
		}
	}
	flush()

	return workspaces
}

// ListOrphans returns workspaces whose owning session is not active.
func (m *Manager) ListOrphans(activeSessions []string) ([]*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.listLocked()
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool, len(activeSessions))
	for _, id := range activeSessions {
		active[id] = true
	}

	var orphans []*Workspace
	for _, ws := range all {
		if ws.Path == m.repoPath || active[ws.SessionID] {
			continue
		}
		orphans = append(orphans, ws)
	}
	return orphans, nil
}

// CleanupOrphans removes orphaned workspaces and prunes stale entries.
// Partial work on the orphaned branches is preserved; only the working
// copies are removed.
func (m *Manager) CleanupOrphans(activeSessions []string, verbose func(path string)) (int, error) {
	orphans, err := m.ListOrphans(activeSessions)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, ws := range orphans {
		_ = m.git.WorktreeUnlock(ws.Path) // may not be locked

		if err := m.git.WorktreeRemove(ws.Path, true); err != nil {
			if err := os.RemoveAll(ws.Path); err != nil {
				continue
			}
		}

		if verbose != nil {
			verbose(ws.Path)
		}
		removed++
	}

	_ = m.git.WorktreePrune()

	return removed, nil
}

// BaseDir returns the directory workspaces are created under.
func (m *Manager) BaseDir() string {
	return m.baseDir
}
