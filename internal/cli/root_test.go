package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tommy", cmd.Use)
	assert.Contains(t, cmd.Long, "destination tree")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "watch", "serve", "gc", "records"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFlag)
	assert.Equal(t, "text", logFlag.DefValue)
}

func TestPipelineFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "watch", "gc", "serve", "records"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"src", "dst", "config", "workers", "store-backend", "store-path"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "f", run.Flags().Lookup("force").Shorthand)
	assert.NotNil(t, run.Flags().Lookup("watch"))

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, ":8080", serve.Flags().Lookup("addr").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	for _, args := range [][]string{
		{"--format", "yaml", "records", "--dst", "."},
		{"--log-format", "logfmt", "records", "--dst", "."},
	} {
		cmd := newRootCommand(&RootOptions{})
		buf := &bytes.Buffer{}
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(args)

		err := cmd.Execute()
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "invalid")
	}
}
