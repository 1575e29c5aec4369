package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLedgerCommands(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	db := filepath.Join(dir, "edufund.db")

	out, err := execute(t, "--store", "sqlite", "--db", db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty=false")

	out, err = execute(t, "--store", "sqlite", "--db", db, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 4 donations, 3 fundings")

	out, err = execute(t, "--store", "sqlite", "--db", db, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already has records")

	out, err = execute(t, "--store", "sqlite", "--db", db, "recompute")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-10")

	_, err = execute(t, "--store", "sqlite", "--db", db, "export", "--month", "2024-10", "--format", "txt", "--out", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "财务报表_2024-10.txt"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "【财务汇总】"))

	_, err = execute(t, "--store", "sqlite", "--db", db, "export", "--month", "2031-01", "--out", "")
	assert.Error(t, err)

	_, err = execute(t, "--store", "sqlite", "--db", db, "export", "--month", "2024-10", "--format", "pdf")
	assert.Error(t, err)
}

func TestExportTargetStdout(t *testing.T) {
	var buf bytes.Buffer
	w, path, closeOut, err := exportTarget(&buf, "", "x.csv")
	require.NoError(t, err)
	assert.Equal(t, "", path)
	assert.Same(t, &buf, w)
	assert.NoError(t, closeOut())
}

func TestMigrateRequiresSQLite(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, err := execute(t, "--store", "memory", "migrate")
	assert.ErrorContains(t, err, "sqlite")
}
