package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"start", "migrate", "legacy", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, rootCmd.Execute())
}

func TestConfigFlagParsing(t *testing.T) {
	rootCmd.SetArgs([]string{"version", "--config", "/tmp/equicloud.yaml"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "/tmp/equicloud.yaml", GetConfigFile())

	cfgFile = ""
}
