// Package analyze inspects a repository and produces the metadata workers
// receive in their instructions. Analysis is read-only.
package analyze

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// RepoMetadata describes the repository a session operates on.
type RepoMetadata struct {
	// Type is the primary language of the repository.
	Type string `json:"type"`
	// Frameworks lists detected frameworks and notable dependencies.
	Frameworks []string `json:"frameworks,omitempty"`
	// TestFramework is the detected test tooling.
	TestFramework string `json:"test_framework,omitempty"`
}

// Analyzer produces RepoMetadata for a repository.
type Analyzer interface {
	Analyze(repoPath string) (*RepoMetadata, error)
}

// MarkerAnalyzer detects repository metadata from well-known marker files.
type MarkerAnalyzer struct{}

// NewAnalyzer creates a MarkerAnalyzer.
func NewAnalyzer() *MarkerAnalyzer {
	return &MarkerAnalyzer{}
}

// Analyze inspects the repository root, checking markers in order of
// specificity. An unrecognized repository yields type "unknown" and no
// error: analysis never blocks a session.
func (a *MarkerAnalyzer) Analyze(repoPath string) (*RepoMetadata, error) {
	meta := &RepoMetadata{Type: "unknown"}

	switch {
	case fileExists(filepath.Join(repoPath, "go.mod")):
		meta.Type = "go"
		meta.TestFramework = "go test"
	case fileExists(filepath.Join(repoPath, "Cargo.toml")):
		meta.Type = "rust"
		meta.TestFramework = "cargo test"
	case fileExists(filepath.Join(repoPath, "pyproject.toml")),
		fileExists(filepath.Join(repoPath, "setup.py")),
		fileExists(filepath.Join(repoPath, "requirements.txt")):
		meta.Type = "python"
		meta.TestFramework = "pytest"
	case fileExists(filepath.Join(repoPath, "package.json")):
		meta.Type = "node"
		meta.Frameworks = nodeFrameworks(repoPath)
		meta.TestFramework = nodeTestFramework(repoPath)
	}

	return meta, nil
}

// nodePackage is the subset of package.json the analyzer reads.
type nodePackage struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readNodePackage(repoPath string) *nodePackage {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return nil
	}
	var pkg nodePackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	return &pkg
}

func nodeFrameworks(repoPath string) []string {
	pkg := readNodePackage(repoPath)
	if pkg == nil {
		return nil
	}

	known := []string{"react", "vue", "svelte", "next", "express", "fastify", "nestjs"}
	var found []string
	for _, name := range known {
		if _, ok := pkg.Dependencies[name]; ok {
			found = append(found, name)
		}
	}
	return found
}

func nodeTestFramework(repoPath string) string {
	pkg := readNodePackage(repoPath)
	if pkg == nil {
		return ""
	}

	for _, name := range []string{"vitest", "jest", "mocha", "ava"} {
		if _, ok := pkg.DevDependencies[name]; ok {
			return name
		}
		if _, ok := pkg.Dependencies[name]; ok {
			return name
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
