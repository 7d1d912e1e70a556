package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullGame = "../../loader/testdata/full"

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("FABLECORE_SAVE_DIR", t.TempDir())

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestScriptPlayback(t *testing.T) {
	script := filepath.Join(t.TempDir(), "walk.txt")
	require.NoError(t, os.WriteFile(script, []byte("# walkthrough\ngo east\n/quit\n"), 0o644))

	out, _, err := run(t, "--script", script, fullGame)
	require.NoError(t, err)
	assert.Contains(t, out, "Full Test Game v0.2 by Tester")
	assert.Contains(t, out, "You stand before the keep.")
	assert.Contains(t, out, "> go east\n")
	assert.Contains(t, out, "Racks of rusted weapons line the walls.")
	assert.Contains(t, out, "[Goodbye.]")
}

func TestPlainReadsStdin(t *testing.T) {
	out, _, err := run(t, "--plain", fullGame)
	require.NoError(t, err)
	assert.Contains(t, out, "A crumbling entrance.")
}

func TestMissingScript(t *testing.T) {
	_, _, err := run(t, "--script", filepath.Join(t.TempDir(), "nope.txt"), fullGame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening script")
}

func TestBadGameDir(t *testing.T) {
	_, _, err := run(t, "--plain", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading game")
}

func TestNeedsGameDir(t *testing.T) {
	_, _, err := run(t)
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	out, _, err := run(t, "validate", fullGame)
	require.NoError(t, err)
	assert.Contains(t, out, "Full Test Game: 3 rooms")
	assert.Contains(t, out, "3 machines")

	_, _, err = run(t, "validate", "../../loader/testdata/invalid")
	require.Error(t, err)
}

func TestExampleGameWalkthrough(t *testing.T) {
	script := filepath.Join(t.TempDir(), "tower.txt")
	walk := "take key\ngo north\nunlock trapdoor with key\nopen trapdoor\ngo up\nring bell\n/quit\n"
	require.NoError(t, os.WriteFile(script, []byte(walk), 0o644))

	out, _, err := run(t, "--script", script, "../../games/tower")
	require.NoError(t, err)
	assert.Contains(t, out, "The Leaning Tower v1.0 by FableCore")
	assert.Contains(t, out, "Worn steps spiral up")
	assert.Contains(t, out, "The trapdoor swings up into darkness.")
	assert.Contains(t, out, "Wind howls through the open arches")
	assert.Contains(t, out, "BONG. The whole tower shudders.")
}
