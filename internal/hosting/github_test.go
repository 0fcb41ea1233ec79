package hosting

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeCmdRunner struct {
	output   map[string][]byte
	err      error
	commands [][]string
	missing  bool
}

func (f *fakeCmdRunner) Run(_ context.Context, workDir, name string, args ...string) ([]byte, error) {
	f.commands = append(f.commands, append([]string{name}, args...))
	if f.err != nil {
		return []byte("remote error"), f.err
	}
	key := name + " " + strings.Join(args[:2], " ")
	return f.output[key], nil
}

func (f *fakeCmdRunner) RunInput(_ context.Context, _, _ string, _ io.Writer, name string, args ...string) (int, error) {
	return 0, nil
}

func (f *fakeCmdRunner) LookPath(name string) error {
	if f.missing {
		return errors.New("not found")
	}
	return nil
}

type fakeRemote struct {
	pushed []string
	err    error
}

func (f *fakeRemote) HasRemote(name string) (bool, error) { return true, nil }
func (f *fakeRemote) Fetch(remote, branch string) error   { return nil }
func (f *fakeRemote) Push(remote, branch string) error {
	f.pushed = append(f.pushed, remote+"/"+branch)
	return f.err
}
func (f *fakeRemote) PushForceWithLease(remote, branch string) error { return f.err }

func TestCreatePullRequestReturnsURL(t *testing.T) {
	runner := &fakeCmdRunner{output: map[string][]byte{
		"gh pr create": []byte("Creating pull request\nhttps://github.com/acme/repo/pull/42\n"),
	}}
	h := NewGitHubCLI(runner, &fakeRemote{}, "/repo", "origin")

	ref, err := h.CreatePullRequest(context.Background(), "main", "fanout/s1/t1", "title", "body")
	if err != nil {
		t.Fatalf("CreatePullRequest failed: %v", err)
	}
	if ref != "https://github.com/acme/repo/pull/42" {
		t.Errorf("ref = %q", ref)
	}

	cmd := runner.commands[0]
	if cmd[0] != "gh" || cmd[1] != "pr" || cmd[2] != "create" {
		t.Errorf("unexpected command: %v", cmd)
	}
}

func TestCreatePullRequestError(t *testing.T) {
	runner := &fakeCmdRunner{err: errors.New("exit status 1")}
	h := NewGitHubCLI(runner, &fakeRemote{}, "/repo", "origin")

	if _, err := h.CreatePullRequest(context.Background(), "main", "head", "t", "b"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateTrackingIssue(t *testing.T) {
	runner := &fakeCmdRunner{output: map[string][]byte{
		"gh issue create": []byte("https://github.com/acme/repo/issues/7\n"),
	}}
	h := NewGitHubCLI(runner, &fakeRemote{}, "/repo", "origin")

	ref, err := h.CreateTrackingIssue(context.Background(), "tracking", "body")
	if err != nil {
		t.Fatalf("CreateTrackingIssue failed: %v", err)
	}
	if ref != "https://github.com/acme/repo/issues/7" {
		t.Errorf("ref = %q", ref)
	}
}

func TestPushBranchUsesConfiguredRemote(t *testing.T) {
	remote := &fakeRemote{}
	h := NewGitHubCLI(&fakeCmdRunner{}, remote, "/repo", "upstream")

	if err := h.PushBranch(context.Background(), "fanout/s1/t1"); err != nil {
		t.Fatalf("PushBranch failed: %v", err)
	}
	if len(remote.pushed) != 1 || remote.pushed[0] != "upstream/fanout/s1/t1" {
		t.Errorf("pushed = %v", remote.pushed)
	}
}

func TestListPRComments(t *testing.T) {
	runner := &fakeCmdRunner{output: map[string][]byte{
		"gh pr view": []byte(`{"comments":[{"author":{"login":"reviewer"},"body":"LGTM","createdAt":"2026-08-28T12:00:00Z"}]}`),
	}}
	h := NewGitHubCLI(runner, &fakeRemote{}, "/repo", "origin")

	comments, err := h.ListPRComments(context.Background(), "42")
	if err != nil {
		t.Fatalf("ListPRComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].Author != "reviewer" || comments[0].Body != "LGTM" {
		t.Errorf("comments = %+v", comments)
	}
}

func TestAvailable(t *testing.T) {
	h := NewGitHubCLI(&fakeCmdRunner{missing: true}, &fakeRemote{}, "/repo", "origin")
	if err := h.Available(); err == nil {
		t.Fatal("expected error when gh is missing")
	}
}
