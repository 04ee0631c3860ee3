package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_PersistentFlags(t *testing.T) {
	for name, short := range map[string]string{"verbose": "v", "repo": "r", "config-dir": ""} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, short, flag.Shorthand, name)
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ask", "plan", "ingest", "mcp", "config", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestRepository_Precedence(t *testing.T) {
	setupTestServices(t)

	assert.Empty(t, repository())

	appConfig.GitHub.Repository = "acme/api"
	assert.Equal(t, "acme/api", repository())

	repoFlag = "acme/web"
	assert.Equal(t, "acme/web", repository())

	appConfig = nil
	assert.Equal(t, "acme/web", repository())
}

func TestExecute_ReturnsExitCodeAndPrintsError(t *testing.T) {
	setupTestServices(t)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs([]string{"ask"})

	code := Execute()

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr.String(), "Error: accepts 1 arg(s)")
}

func TestExecute_Success(t *testing.T) {
	setupTestServices(t)
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"version"})

	assert.Equal(t, ExitOK, Execute())
}

func TestExecute_UnknownFlagIsUsage(t *testing.T) {
	setupTestServices(t)
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"ask", "--nope", "q"})

	assert.Equal(t, ExitUsage, Execute())
}
