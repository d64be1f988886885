package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spacesedan/racepulse/internal/collector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTargets(t *testing.T) {
	targets, err := loadTargets(`[{"year":2025,"round":1,"session":"Race"}]`, "")
	require.NoError(t, err)
	assert.Equal(t, []collector.Target{{Year: 2025, Round: 1, Session: collector.Race}}, targets)

	path := filepath.Join(t.TempDir(), "targets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"year":2024,"round":8,"session":"qualifying"}]`), 0o644))
	targets, err = loadTargets("", path)
	require.NoError(t, err)
	assert.Equal(t, []collector.Target{{Year: 2024, Round: 8, Session: collector.Qualifying}}, targets)

	_, err = loadTargets("", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	writeStats(&buf, collector.Stats{Total: 4, Successful: 3, Failed: 1, Published: 42})

	assert.Equal(t, "Total scraping attempts: 4\nSuccessful: 3\nFailed: 1\nItems published: 42\nSuccess rate: 75.0%\n", buf.String())
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"session", "season", "all", "specific", "watch"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	all, _, err := root.Find([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, "2020", all.Flags().Lookup("from").DefValue)
}

func TestSpecificCommand_RequiresTargets(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"specific"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestAllCommand_RejectsInvertedRange(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"all", "--from", "2024", "--to", "2020"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before --from")
}
