package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"migrate", "import", "allocate", "history", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "listing-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestImportCommand_Flags(t *testing.T) {
	flag := importCmd.Flags().Lookup("xlsx")
	require.NotNil(t, flag, "import command should have --xlsx flag")

	sheetFlag := importCmd.Flags().Lookup("sheet")
	require.NotNil(t, sheetFlag, "import command should have --sheet flag")
}

func TestAllocateCommand_Flags(t *testing.T) {
	for _, name := range []string{"sheet", "roster", "category", "limit"} {
		flag := allocateCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "allocate command should have --%s flag", name)
	}
}

func TestHistoryCommand_Flags(t *testing.T) {
	flag := historyCmd.Flags().Lookup("sheet")
	require.NotNil(t, flag, "history command should have --sheet flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
