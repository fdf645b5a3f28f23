package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryanmoran/testbed/fixtures"
)

func TestRun(t *testing.T) {
	t.Run("check passes with the default fixtures", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := run([]string{"testbed", "check", "--tests", "3"}, &stdout, &stderr)
		require.NoError(t, err)

		require.Contains(t, stdout.String(), "test 1: ok\n")
		require.Contains(t, stdout.String(), "test 3: ok\n")
		require.NotContains(t, stdout.String(), "test 4")
		require.Regexp(t, `check passed for run [0-9a-f]{8}\n`, stdout.String())
	})

	t.Run("check logs at the requested level", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := run([]string{"testbed", "check", "--log-level", "debug"}, &stdout, &stderr)
		require.NoError(t, err)

		require.Contains(t, stderr.String(), `"msg":"transitioning phase"`)
		require.Contains(t, stderr.String(), `"msg":"reversing operation"`)
	})

	t.Run("resources lists the configured fixtures", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "testbed.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fixtures:\n  sqlite: true\n"), 0o600))

		var stdout, stderr bytes.Buffer
		err := run([]string{"testbed", "resources", "--config", path}, &stdout, &stderr)
		require.NoError(t, err)

		require.Contains(t, stdout.String(), "Manager (phase BEFORE_CLASS):\n")
		require.Contains(t, stdout.String(), fixtures.FilesKey.String()+" -> files\n")
		require.Contains(t, stdout.String(), fixtures.SQLiteKey.String()+" -> sqlite\n")
		require.NotContains(t, stdout.String(), "nats")
	})

	t.Run("failure cases", func(t *testing.T) {
		t.Run("when the log level is unknown", func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			err := run([]string{"testbed", "check", "--log-level", "loud"}, &stdout, &stderr)
			require.ErrorContains(t, err, `failed to parse log level "loud"`)
		})

		t.Run("when the config file is missing", func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			err := run([]string{"testbed", "resources", "--config", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr)
			require.ErrorContains(t, err, "failed to read config file")
		})
	})
}
