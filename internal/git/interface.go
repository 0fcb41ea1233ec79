// Package git provides an interface for git operations.
package git

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// CreateBranchFrom creates a new branch at the given start point.
	CreateBranchFrom(name, startPoint string) error
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(name string) error
	// BranchExists returns true if the local branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
}

// DiffOperations defines the interface for git diff and status operations.
type DiffOperations interface {
	// Status returns the output of git status --porcelain.
	Status() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// HasStagedChanges returns true if the index differs from HEAD.
	HasStagedChanges() (bool, error)
	// ChangedFilesRelative returns files changed on a branch relative to a
	// base ref, using the triple-dot diff (base...branch).
	ChangedFilesRelative(branch, base string) ([]string, error)
	// ConflictedFiles returns a list of files with unmerged changes.
	ConflictedFiles() ([]string, error)
}

// CommitOperations defines the interface for git commit operations.
type CommitOperations interface {
	// AddAll stages every change in the working tree.
	AddAll() error
	// Add stages the specified files for commit.
	Add(paths ...string) error
	// Commit creates a new commit with the given message.
	Commit(message string) error
	// RemovePath removes a path from the index and working tree.
	RemovePath(path string) error
	// CheckoutTheirs checks out the "theirs" version of a conflicted file.
	CheckoutTheirs(path string) error
}

// ReplayOperations defines the interface for replaying commits during
// integration.
type ReplayOperations interface {
	// CherryPick applies the given commit onto the current branch.
	CherryPick(hash string) error
	// CherryPickContinue finalizes a cherry-pick after conflict resolution
	// without opening an editor.
	CherryPickContinue() error
	// CherryPickAbort aborts an in-progress cherry-pick.
	CherryPickAbort() error
	// CherryPickSkip drops the current commit and moves on. Used when
	// conflict resolution leaves nothing to commit.
	CherryPickSkip() error
	// ResetHard resets the current branch and working tree to the ref.
	ResetHard(ref string) error
}

// HistoryOperations defines the interface for commit graph queries.
type HistoryOperations interface {
	// RevParse resolves a ref to its commit hash.
	RevParse(ref string) (string, error)
	// TreeHash returns the tree object hash for the given ref. Two refs
	// with equal tree hashes hold identical content even when their commit
	// hashes differ.
	TreeHash(ref string) (string, error)
	// CommitsBetween returns the commits reachable from head but not base,
	// oldest first.
	CommitsBetween(base, head string) ([]string, error)
	// AheadCount returns the number of commits head is ahead of base.
	AheadCount(base, head string) (int, error)
	// PathExistsIn returns true if the path exists in the tree of the ref.
	PathExistsIn(ref, path string) (bool, error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree with a new branch at the
	// given start point (git worktree add -b).
	WorktreeAddNewBranch(path, branch, startPoint string) error
	// WorktreeRemove removes the worktree at the given path, optionally
	// discarding uncommitted changes.
	WorktreeRemove(path string, force bool) error
	// WorktreeUnlock unlocks a locked worktree.
	WorktreeUnlock(path string) error
	// WorktreeListPorcelain returns the raw porcelain output for parsing.
	WorktreeListPorcelain() (string, error)
	// WorktreePrune removes stale worktree entries immediately.
	WorktreePrune() error
}

// RemoteOperations defines the interface for git remote operations.
type RemoteOperations interface {
	// HasRemote returns true if the named remote is configured.
	HasRemote(name string) (bool, error)
	// Fetch fetches the given branch from the remote.
	Fetch(remote, branch string) error
	// Push pushes the branch to the remote.
	Push(remote, branch string) error
	// PushForceWithLease force-pushes the branch, refusing to overwrite
	// remote commits not seen locally.
	PushForceWithLease(remote, branch string) error
}

// Runner defines the complete interface for git operations.
// Consumers should prefer the focused interfaces when possible.
type Runner interface {
	BranchOperations
	DiffOperations
	CommitOperations
	ReplayOperations
	HistoryOperations
	WorktreeOperations
	RemoteOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
