package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "sync", "seed", "export"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestServeFlags(t *testing.T) {
	f := serveCmd.Flags()
	require.NotNil(t, f.Lookup("port"))
	require.NotNil(t, f.Lookup("sync-schedule"))
}

func TestExportFlags(t *testing.T) {
	f := exportCmd.Flags()
	require.NotNil(t, f.Lookup("config"))
	require.NotNil(t, f.Lookup("date"))
	out := f.Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "rankings.xlsx", out.DefValue)
}
