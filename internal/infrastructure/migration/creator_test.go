package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/erp/dre/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add ledger index", "add_ledger_index"},
		{"Add-Ledger-Index", "add_ledger_index"},
		{"ADD__LEDGER__INDEX", "add_ledger_index"},
		{"Runs 2024", "runs_2024"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	t.Run("first migration", func(t *testing.T) {
		mf, err := CreateMigration(dir, "create templates", "Template table")
		require.NoError(t, err)
		assert.Equal(t, "000001", mf.Version)
		assert.Equal(t, filepath.Join(dir, "000001_create_templates.up.sql"), mf.UpPath)
		assert.Equal(t, filepath.Join(dir, "000001_create_templates.down.sql"), mf.DownPath)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "create_templates")
		assert.Contains(t, string(up), "Template table")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "Rollback")
	})

	t.Run("continues after the highest version", func(t *testing.T) {
		writeFiles(t, dir, "000007_manual.up.sql", "000007_manual.down.sql")

		mf, err := CreateMigration(dir, "next", "")
		require.NoError(t, err)
		assert.Equal(t, "000008", mf.Version)
	})

	t.Run("rejects unusable names", func(t *testing.T) {
		_, err := CreateMigration(dir, "!!!", "")
		assert.Error(t, err)
	})

	t.Run("creates missing directory", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "nested", "migrations")
		_, err := CreateMigration(nested, "init", "")
		require.NoError(t, err)

		info, err := os.Stat(nested)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("sorted up migrations only", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000002_ledger.up.sql", "000002_ledger.down.sql",
			"000001_templates.up.sql", "000001_templates.down.sql",
			"README.md", ".gitkeep",
		)
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

		got, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_templates", "000002_ledger"}, got)
	})

	t.Run("missing directory", func(t *testing.T) {
		got, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestCheckPairs(t *testing.T) {
	t.Run("embedded schema is paired", func(t *testing.T) {
		require.NoError(t, CheckPairs(migrations.FS))
	})

	t.Run("reports missing halves", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000001_a.up.sql":   {Data: []byte("")},
			"000001_a.down.sql": {Data: []byte("")},
			"000002_b.up.sql":   {Data: []byte("")},
			"000003_c.down.sql": {Data: []byte("")},
		}
		err := CheckPairs(fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "000002_b.down.sql")
		assert.Contains(t, err.Error(), "000003_c.up.sql")
	})
}
