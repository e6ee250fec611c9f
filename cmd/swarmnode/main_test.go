package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Version(t *testing.T) {
	root := rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "swarmnode dev ("), out.String())
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := rootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "simulate", "winners", "register", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_Simulate(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	root := rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"simulate", "--nodes", "2", "--rounds", "1", "--store", "memory", "--questions-per-round", "1"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "round 0")
	assert.Contains(t, out.String(), "node-0")
}
