package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fmueller/mocoscribe/internal/config"
	"github.com/fmueller/mocoscribe/internal/moco"
	"github.com/fmueller/mocoscribe/internal/scribe"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type transcriberFunc func(ctx context.Context, filePath string, opts moco.Options) (*moco.Result, error)

func (f transcriberFunc) Transcribe(ctx context.Context, filePath string, opts moco.Options) (*moco.Result, error) {
	return f(ctx, filePath, opts)
}

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

// newTestApp returns an appState wired to a temp config and a fake
// transcriber.
func newTestApp(t *testing.T, transcribe transcriberFunc) *appState {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"apiKey":"secret"}`), 0o600))

	return &appState{
		configPath: configPath,
		language:   "ja",
		noProgress: true,
		now:        func() time.Time { return fixedNow },
		newTranscriberFn: func(cfg *config.Config, onStatus func(moco.Status)) scribe.Transcriber {
			require.Equal(t, "secret", cfg.APIKey)
			return transcriberFunc(func(ctx context.Context, filePath string, opts moco.Options) (*moco.Result, error) {
				if onStatus != nil {
					onStatus(moco.StatusInProgress)
				}
				return transcribe(ctx, filePath, opts)
			})
		},
	}
}

func writeMedia(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))
	return path
}
