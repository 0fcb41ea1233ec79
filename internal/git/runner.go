package git

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ExecRunner implements Runner using exec.Command.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// run executes a git command and returns its trimmed output.
func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// runSilent executes a git command and ignores output.
func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.run(args...)
	return err
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(args ...string) (string, error) {
	return r.run(args...)
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranchFrom creates a new branch at the given start point.
func (r *ExecRunner) CreateBranchFrom(name, startPoint string) error {
	return r.runSilent("branch", name, startPoint)
}

// CheckoutBranch switches to the specified branch.
func (r *ExecRunner) CheckoutBranch(name string) error {
	return r.runSilent("checkout", name)
}

// BranchExists returns true if the local branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	if err := cmd.Run(); err != nil {
		// Exit code 1 means the branch doesn't exist, not an error.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-D", name)
}

// Status returns the output of git status --porcelain.
func (r *ExecRunner) Status() (string, error) {
	return r.run("status", "--porcelain")
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// HasStagedChanges returns true if the index differs from HEAD.
func (r *ExecRunner) HasStagedChanges() (bool, error) {
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	cmd.Dir = r.repoPath
	if err := cmd.Run(); err != nil {
		// Exit code 1 means the index has changes, not an error.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return true, nil
		}
		return false, fmt.Errorf("check staged changes: %w", err)
	}
	return false, nil
}

// ChangedFilesRelative returns files changed on a branch relative to a base.
func (r *ExecRunner) ChangedFilesRelative(branch, base string) ([]string, error) {
	out, err := r.run("diff", "--name-only", base+"..."+branch)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ConflictedFiles returns a list of files with unmerged changes.
func (r *ExecRunner) ConflictedFiles() ([]string, error) {
	out, err := r.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// AddAll stages every change in the working tree.
func (r *ExecRunner) AddAll() error {
	return r.runSilent("add", "-A")
}

// Add stages the specified files for commit.
func (r *ExecRunner) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	return r.runSilent(args...)
}

// Commit creates a new commit with the given message.
func (r *ExecRunner) Commit(message string) error {
	return r.runSilent("commit", "-m", message)
}

// RemovePath removes a path from the index and working tree.
func (r *ExecRunner) RemovePath(path string) error {
	return r.runSilent("rm", "-f", "--", path)
}

// CheckoutTheirs checks out the "theirs" version of a conflicted file.
func (r *ExecRunner) CheckoutTheirs(path string) error {
	return r.runSilent("checkout", "--theirs", "--", path)
}

// CherryPick applies the given commit onto the current branch.
func (r *ExecRunner) CherryPick(hash string) error {
	return r.runSilent("cherry-pick", hash)
}

// CherryPickContinue finalizes a cherry-pick after conflict resolution.
func (r *ExecRunner) CherryPickContinue() error {
	return r.runSilent("-c", "core.editor=true", "cherry-pick", "--continue")
}

// CherryPickAbort aborts an in-progress cherry-pick.
func (r *ExecRunner) CherryPickAbort() error {
	return r.runSilent("cherry-pick", "--abort")
}

// CherryPickSkip drops the current commit and moves on.
func (r *ExecRunner) CherryPickSkip() error {
	return r.runSilent("cherry-pick", "--skip")
}

// ResetHard resets the current branch and working tree to the ref.
func (r *ExecRunner) ResetHard(ref string) error {
	return r.runSilent("reset", "--hard", ref)
}

// RevParse resolves a ref to its commit hash.
func (r *ExecRunner) RevParse(ref string) (string, error) {
	return r.run("rev-parse", ref)
}

// TreeHash returns the tree object hash for the given ref.
func (r *ExecRunner) TreeHash(ref string) (string, error) {
	return r.run("rev-parse", ref+"^{tree}")
}

// CommitsBetween returns the commits reachable from head but not base,
// oldest first.
func (r *ExecRunner) CommitsBetween(base, head string) ([]string, error) {
	out, err := r.run("rev-list", "--reverse", base+".."+head)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// AheadCount returns the number of commits head is ahead of base.
func (r *ExecRunner) AheadCount(base, head string) (int, error) {
	out, err := r.run("rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}

// PathExistsIn returns true if the path exists in the tree of the ref.
func (r *ExecRunner) PathExistsIn(ref, path string) (bool, error) {
	cmd := exec.Command("git", "cat-file", "-e", ref+":"+path)
	cmd.Dir = r.repoPath
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, fmt.Errorf("check path in ref: %w", err)
	}
	return true, nil
}

// WorktreeAddNewBranch creates a worktree with a new branch at startPoint.
func (r *ExecRunner) WorktreeAddNewBranch(path, branch, startPoint string) error {
	return r.runSilent("worktree", "add", "-b", branch, path, startPoint)
}

// WorktreeRemove removes the worktree at the given path.
func (r *ExecRunner) WorktreeRemove(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	return r.runSilent(args...)
}

// WorktreeUnlock unlocks a locked worktree.
func (r *ExecRunner) WorktreeUnlock(path string) error {
	return r.runSilent("worktree", "unlock", path)
}

// WorktreeListPorcelain returns the raw porcelain output for parsing.
func (r *ExecRunner) WorktreeListPorcelain() (string, error) {
	return r.run("worktree", "list", "--porcelain")
}

// WorktreePrune removes stale worktree entries immediately.
func (r *ExecRunner) WorktreePrune() error {
	return r.runSilent("worktree", "prune", "--expire", "now")
}

// HasRemote returns true if the named remote is configured.
func (r *ExecRunner) HasRemote(name string) (bool, error) {
	out, err := r.run("remote")
	if err != nil {
		return false, err
	}
	for _, remote := range splitLines(out) {
		if remote == name {
			return true, nil
		}
	}
	return false, nil
}

// Fetch fetches the given branch from the remote.
func (r *ExecRunner) Fetch(remote, branch string) error {
	return r.runSilent("fetch", remote, branch)
}

// Push pushes the branch to the remote.
func (r *ExecRunner) Push(remote, branch string) error {
	return r.runSilent("push", remote, branch)
}

// PushForceWithLease force-pushes the branch with overwrite protection.
func (r *ExecRunner) PushForceWithLease(remote, branch string) error {
	return r.runSilent("push", "--force-with-lease", remote, branch)
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
