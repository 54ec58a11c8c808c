package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-cli/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"extract", "afford", "ping", "runs", "tasks", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "campus-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_LogFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("log-format"))

	t.Cleanup(func() { logLevel, logFormat = "", "" })

	lc := config.LogConfig{Level: "info", Format: "json"}
	applyLogFlags(&lc)
	assert.Equal(t, config.LogConfig{Level: "info", Format: "json"}, lc)

	logLevel, logFormat = "debug", "console"
	applyLogFlags(&lc)
	assert.Equal(t, config.LogConfig{Level: "debug", Format: "console"}, lc)
}

func TestExtractCommand_Flags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"task", "programs"},
		{"input", "universities.csv"},
		{"output", ""},
		{"limit", "0"},
		{"resume", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := extractCmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag, "extract command should have --%s flag", tt.name)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestAffordCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "budget", "budget-file", "output"} {
		require.NotNil(t, affordCmd.Flags().Lookup(name), "afford command should have --%s flag", name)
	}
	assert.Equal(t, "budget.csv", affordCmd.Flags().Lookup("budget-file").DefValue)
	assert.Equal(t, "affordable_universities.csv", affordCmd.Flags().Lookup("output").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}
