package main

import (
	"errors"
	"testing"

	"github.com/fmueller/mocoscribe/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"mocoscribe\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, shouldPrintUsageHint(errors.New(`invalid argument "soon" for "--poll-interval" flag`)))
	require.False(t, shouldPrintUsageHint(errors.New("transcription failed: API key is invalid (status 401)")))
	require.False(t, shouldPrintUsageHint(errors.New("config error: read config.json: no such file")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "mocoscribe", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "mocoscribe", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "mocoscribe transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "mocoscribe transcribe", helpHintTarget(root, []string{"transcribe", "--timestamp"}))
	require.Equal(t, "mocoscribe serve", helpHintTarget(root, []string{"serve", "--addr"}))
	require.Equal(t, "mocoscribe", helpHintTarget(nil, nil))
}
