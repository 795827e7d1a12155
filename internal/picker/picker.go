package picker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fmueller/mocoscribe/internal/media"
	"github.com/fmueller/mocoscribe/internal/platform"
)

var ErrUnavailable = errors.New("no file dialog command available")

const dialogTitle = "Select a media file"

type dialogCommand struct {
	name string
	args []string
}

type environment struct {
	goos     string
	getenv   func(string) string
	lookPath func(string) (string, error)
}

func currentEnvironment() environment {
	return environment{goos: runtime.GOOS, getenv: os.Getenv, lookPath: exec.LookPath}
}

// ChooseFile opens the native "open file" dialog filtered to supported
// media types. It returns the chosen absolute path, or "" when the user
// dismissed the dialog.
func ChooseFile(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dialog, err := detectCommand(currentEnvironment())
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, dialog.name, dialog.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if runErr := cmd.Run(); runErr != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("file dialog interrupted: %w", ctx.Err())
		}
		if isCancel(runErr, stdout.String()) {
			return "", nil
		}
		return "", fmt.Errorf("run %s: %w: %s", dialog.name, runErr, strings.TrimSpace(stderr.String()))
	}

	return parseSelection(stdout.String())
}

func detectCommand(env environment) (dialogCommand, error) {
	if env.goos == "darwin" {
		if _, err := env.lookPath("osascript"); err == nil {
			return dialogCommand{name: "osascript", args: []string{"-e", appleScript()}}, nil
		}
		return dialogCommand{}, ErrUnavailable
	}

	if env.goos == "windows" {
		for _, name := range []string{"powershell", "pwsh"} {
			if _, err := env.lookPath(name); err == nil {
				return powershellCommand(name), nil
			}
		}
		return dialogCommand{}, ErrUnavailable
	}

	if !platform.HasDisplay(env.goos, env.getenv) {
		return dialogCommand{}, fmt.Errorf("%w: no graphical session", ErrUnavailable)
	}

	candidates := []dialogCommand{zenityCommand(), kdialogCommand()}
	if platform.PrefersKDE(env.getenv) {
		candidates = []dialogCommand{kdialogCommand(), zenityCommand()}
	}

	for _, candidate := range candidates {
		if _, err := env.lookPath(candidate.name); err == nil {
			return candidate, nil
		}
	}

	return dialogCommand{}, ErrUnavailable
}

func zenityCommand() dialogCommand {
	filter := "Media files | " + strings.Join(media.GlobPatterns(), " ")
	return dialogCommand{name: "zenity", args: []string{"--file-selection", "--title=" + dialogTitle, "--file-filter=" + filter}}
}

func kdialogCommand() dialogCommand {
	filter := strings.Join(media.GlobPatterns(), " ") + "|Media files"
	return dialogCommand{name: "kdialog", args: []string{"--title", dialogTitle, "--getopenfilename", ".", filter}}
}

// powershellCommand shows the WinForms OpenFileDialog. A dismissed dialog
// prints nothing and exits 0.
func powershellCommand(name string) dialogCommand {
	filter := "Media files|" + strings.Join(media.GlobPatterns(), ";")
	script := strings.Join([]string{
		"Add-Type -AssemblyName System.Windows.Forms",
		"$d = New-Object System.Windows.Forms.OpenFileDialog",
		fmt.Sprintf("$d.Title = '%s'", dialogTitle),
		fmt.Sprintf("$d.Filter = '%s'", filter),
		"if ($d.ShowDialog() -eq [System.Windows.Forms.DialogResult]::OK) { [Console]::Out.Write($d.FileName) }",
	}, "; ")
	return dialogCommand{name: name, args: []string{"-NoProfile", "-NonInteractive", "-STA", "-Command", script}}
}

func appleScript() string {
	quoted := make([]string, 0, len(media.Extensions))
	for _, ext := range media.Extensions {
		quoted = append(quoted, fmt.Sprintf("%q", ext))
	}
	return fmt.Sprintf("POSIX path of (choose file with prompt %q of type {%s})", dialogTitle, strings.Join(quoted, ", "))
}

// isCancel treats exit status 1 with no output as a dismissed dialog,
// which is how zenity, kdialog and osascript all report it.
func isCancel(err error, stdout string) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return exitErr.ExitCode() == 1 && strings.TrimSpace(stdout) == ""
}

func parseSelection(stdout string) (string, error) {
	selected := strings.TrimSpace(stdout)
	if selected == "" {
		return "", nil
	}

	abs, err := filepath.Abs(selected)
	if err != nil {
		return "", fmt.Errorf("resolve selected path: %w", err)
	}
	return abs, nil
}
