package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ryanmoran/testbed/config"
	"github.com/ryanmoran/testbed/fixtures"
	"github.com/ryanmoran/testbed/lifecycle"
)

// CheckEnvVar is set by every check test and restored afterwards.
const CheckEnvVar = "TESTBED_CHECK_TEST"

// Setup registers the files and environment fixtures on m, plus every
// optional fixture cfg enables.
func Setup(m *lifecycle.Manager, src *config.Source, cfg Config, runID RunID, opts ...fixtures.ContainersOption) error {
	if err := fixtures.RegisterDefaults(m); err != nil {
		return err
	}

	if cfg.Fixtures.Git {
		if err := lifecycle.RegisterKey(m, fixtures.GitKey, fixtures.NewGit(m)); err != nil {
			return err
		}
	}
	if cfg.Fixtures.SQLite {
		if err := lifecycle.RegisterKey(m, fixtures.SQLiteKey, fixtures.NewSQLite(m)); err != nil {
			return err
		}
	}
	if cfg.Fixtures.NATS {
		if err := lifecycle.RegisterKey(m, fixtures.NATSKey, fixtures.NewNATS(m)); err != nil {
			return err
		}
	}
	if len(cfg.Fixtures.Run) > 0 {
		containers, err := fixtures.NewContainers(m, src, string(runID), opts...)
		if err != nil {
			return err
		}
		if err := lifecycle.RegisterKey(m, fixtures.ContainersKey, containers); err != nil {
			return err
		}
	}
	return nil
}

// checker holds what the class-scoped part of a check run created for the
// tests to use.
type checker struct {
	m       *lifecycle.Manager
	cfg     Config
	w       Writer
	natsURL string
}

// Check drives one class of cfg.Tests tests through m. Each test exercises
// every registered fixture, and the check verifies that what a test
// created is gone once the test is torn down.
func Check(ctx context.Context, m *lifecycle.Manager, cfg Config, w Writer) error {
	c := checker{m: m, cfg: cfg, w: w}

	var errs []error
	if err := m.OnBeforeAll(); err != nil {
		errs = append(errs, err)
	} else if err := c.beforeAll(); err != nil {
		errs = append(errs, err)
	} else {
		for i := 1; i <= cfg.Tests; i++ {
			if err := c.test(lifecycle.WithInstance(ctx, i), i); err != nil {
				w.Printf("test %d: failed\n", i)
				errs = append(errs, fmt.Errorf("test %d: %w", i, err))
				continue
			}
			w.Printf("test %d: ok\n", i)
		}
	}

	if err := m.OnAfterAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *checker) beforeAll() error {
	if c.m.Has(fixtures.NATSKey.String()) {
		server, err := lifecycle.Get(c.m, fixtures.NATSKey).StartServer()
		if err != nil {
			return err
		}
		c.natsURL = server.ClientURL()
		c.w.Printf("nats: serving on %s\n", c.natsURL)
	}

	if c.m.Has(fixtures.GitKey.String()) {
		g := lifecycle.Get(c.m, fixtures.GitKey)
		dir, err := g.CreateRepository(map[string]string{"README.md": "# testbed check\n"})
		if err != nil {
			return err
		}

		if _, err := exec.LookPath("git"); err != nil {
			c.w.Warningf("git not found in PATH, not serving %s", dir)
			return nil
		}

		server, err := g.Serve(dir)
		if err != nil {
			return err
		}
		c.w.Printf("git: serving %s\n", server.URL())
	}
	return nil
}

func (c *checker) test(ctx context.Context, n int) error {
	var errs []error
	errs = append(errs, c.m.OnPostProcessInstance(ctx), c.m.OnBeforeEach(ctx), c.m.OnBeforeTestExecution(ctx))

	var dir string
	if err := errors.Join(errs...); err == nil {
		dir, err = c.body(ctx, n)
		errs = append(errs, err)
	}

	errs = append(errs, c.m.OnAfterTestExecution(ctx), c.m.OnAfterEach(ctx))

	if dir != "" {
		if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("temporary directory %q survived its test", dir))
		}
	}
	return errors.Join(errs...)
}

func (c *checker) body(ctx context.Context, n int) (string, error) {
	var dir string
	if c.cfg.Fixtures.Files {
		var err error
		dir, err = fixtures.FilesOf(c.m).CreateTempDir()
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, "check"), []byte(strconv.Itoa(n)), 0o600); err != nil {
			return dir, fmt.Errorf("failed to write to temporary directory: %w", err)
		}
	}

	if err := fixtures.EnvironmentOf(c.m).Setenv(CheckEnvVar, strconv.Itoa(n)); err != nil {
		return dir, err
	}

	if c.m.Has(fixtures.SQLiteKey.String()) {
		db, err := lifecycle.Get(c.m, fixtures.SQLiteKey).Open(ctx, "check", "CREATE TABLE runs (test INTEGER NOT NULL)")
		if err != nil {
			return dir, err
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO runs (test) VALUES (?)", n); err != nil {
			return dir, fmt.Errorf("failed to write to database: %w", err)
		}
	}

	if c.natsURL != "" {
		nc, err := lifecycle.Get(c.m, fixtures.NATSKey).Connect(c.natsURL)
		if err != nil {
			return dir, err
		}
		if err := nc.Publish("testbed.check", []byte(strconv.Itoa(n))); err != nil {
			return dir, fmt.Errorf("failed to publish: %w", err)
		}
		if err := nc.Flush(); err != nil {
			return dir, fmt.Errorf("failed to flush: %w", err)
		}
	}

	if c.m.Has(fixtures.ContainersKey.String()) {
		containers := lifecycle.Get(c.m, fixtures.ContainersKey)
		for _, name := range c.cfg.Fixtures.Run {
			container, err := containers.RunNamed(ctx, name)
			if err != nil {
				return dir, err
			}
			c.w.Printf("test %d: started container %s\n", n, container.Name)
		}
	}
	return dir, nil
}
