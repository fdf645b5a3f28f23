package fixtures

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/ryanmoran/testbed/internal/git"
	"github.com/ryanmoran/testbed/lifecycle"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// GitServer is a running smart-HTTP server for a fixture repository.
type GitServer = git.Server

// GitAuthor is the identity fixture commits are made with.
type GitAuthor struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// Git creates throwaway repositories and serves them over HTTP.
type Git struct {
	lifecycle.Base
	Author GitAuthor

	ops    *lifecycle.Operations
	logger *zap.Logger
	dirs   tempDirs
}

// NewGit returns a Git fixture committing as the Testbed author.
func NewGit(m *lifecycle.Manager) *Git {
	return &Git{
		Base:   lifecycle.Base{DisplayName: "git"},
		Author: GitAuthor{Name: "Testbed", Email: "testbed@example.com"},
		ops:    m.Operations(),
		logger: m.Logger(),
		dirs:   osTempDirs(),
	}
}

// CreateRepository creates a repository in a new temporary directory with
// one commit holding files, keyed by slash-separated path. The working tree
// accepts pushes to its checked-out branch. The directory is deleted on
// drain.
func (g *Git) CreateRepository(files map[string]string) (string, error) {
	return execute(g.ops, "Create git repository", "Delete git repository",
		func() (string, error) {
			return g.dirs.createWith("testbed-git-", func(dir string) error {
				return g.initRepository(dir, files)
			})
		},
		g.dirs.remove,
	)
}

func (g *Git) initRepository(dir string, files map[string]string) error {
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		return fmt.Errorf("failed to initialize repository in %q: %w", dir, err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}
	cfg.Raw.Section("receive").SetOption("denyCurrentBranch", "updateInstead")
	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("failed to write repository config: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := g.dirs.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", name, err)
		}
		if err := afero.WriteFile(g.dirs.fs, path, []byte(files[name]), 0o644); err != nil {
			return fmt.Errorf("failed to write %q: %w", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			return fmt.Errorf("failed to stage %q: %w", name, err)
		}
	}

	_, err = wt.Commit("initial commit", &gogit.CommitOptions{
		Author:            &object.Signature{Name: g.Author.Name, Email: g.Author.Email, When: time.Now()},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Serve starts a Git HTTP server for the repository at path. The server is
// closed on drain.
func (g *Git) Serve(path string) (*GitServer, error) {
	return execute(g.ops, fmt.Sprintf("Start git server for %s", path), fmt.Sprintf("Stop git server for %s", path),
		func() (*GitServer, error) {
			return git.NewServer(path, g.logger)
		},
		(*GitServer).Close,
	)
}
