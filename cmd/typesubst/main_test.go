package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/funvibe/typesubst/internal/config"
	"github.com/funvibe/typesubst/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passing = `
classes:
  - {name: Box, params: [T]}
  - {name: Int}
substitutors:
  s: {map: {T: Int}}
cases:
  - {name: leaf, substitutor: s, scope: Box, input: "Box<T>", expect: "Box<Int>"}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestMain(m *testing.M) {
	config.IsTestMode = true
	os.Exit(m.Run())
}

func TestCheckPasses(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "typesubst.yaml", "color: never\nparallelism: 1\n")
	path := writeFile(t, dir, "ok.yaml", passing)

	code, out, errOut := runCLI(t, "check", "-config", cfg, path)
	assert.Equal(t, exitOK, code, errOut)
	assert.Equal(t, path+": 1 passed, 0 failed, 0 crashed\n", out)
}

func TestCheckMismatchExitsOne(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "typesubst.yaml", "color: never\n")
	path := writeFile(t, dir, "bad.yaml", passing+`  - {name: wrong, substitutor: s, scope: Box, input: T, expect: Box<Int>}
`)

	code, out, _ := runCLI(t, "check", "-config", cfg, path)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, out, "FAIL wrong")

	// run reports the same mismatch without failing the process.
	code, _, _ = runCLI(t, "run", "-config", cfg, path)
	assert.Equal(t, exitOK, code)
}

func TestCrashExitsTwo(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "typesubst.yaml", "color: never\n")
	path := writeFile(t, dir, "crash.yaml", `
classes:
  - {name: Box, params: [T]}
  - {name: Int}
  - {name: List, params: [out E]}
substitutors:
  s: {map: {T: Int}}
cases:
  - {name: capture, substitutor: s, scope: Box, input: "Captured(out Int <: List<T>)"}
`)
	code, _, errOut := runCLI(t, "run", "-config", cfg, path)
	assert.Equal(t, exitInternal, code)
	assert.Contains(t, errOut, "internal error: captured type supertypes substitute")
}

func TestRenderAndTrace(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "typesubst.yaml", "color: never\n")
	path := writeFile(t, dir, "ok.yaml", passing)

	code, out, errOut := runCLI(t, "render", "-v", "-config", cfg, path)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "leaf: Box<T>\n", out)
	assert.Contains(t, errOut, "[typesubst] "+path+": 2 classes, 1 substitutors, 1 cases")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "missing command"},
		{"unknown command", []string{"solve"}, `unknown command "solve"`},
		{"no files", []string{"run"}, "no scenario files given"},
		{"dangling config", []string{"run", "-config"}, "-config needs a file"},
		{"unknown flag", []string{"run", "-x", "a.yaml"}, "unknown flag -x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, exitFailed, code)
			assert.Contains(t, errOut, tt.want)
			assert.Contains(t, errOut, "usage: typesubst")
		})
	}
}

func TestMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "typesubst.yaml", "color: never\n")
	code, _, errOut := runCLI(t, "check", "-config", cfg, filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, errOut, "Error reading file")
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"render", "a.yaml", "-v", "b.yaml"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeRender, opts.mode)
	assert.True(t, opts.verbose)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, opts.files)
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, useColor(config.ColorAlways, &buf))
	assert.False(t, useColor(config.ColorNever, &buf))
	assert.False(t, useColor(config.ColorAuto, &buf), "a buffer is not a terminal")
}
