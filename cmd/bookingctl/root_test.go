package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()

	migrate, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", migrate.Name())

	cleanup, _, err := root.Find([]string{"holds", "cleanup"})
	require.NoError(t, err)
	assert.Equal(t, "cleanup", cleanup.Name())
}

func TestRootCmd_RejectsExtraArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "now"})

	assert.Error(t, root.Execute())
}

func TestRootCmd_BadConfigFails(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"holds", "cleanup", "--config", "/nonexistent/booking.yaml"})

	err := root.Execute()
	assert.ErrorContains(t, err, "failed to read config file")
}
