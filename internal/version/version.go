package version

import (
	"os/exec"
	"runtime/debug"
	"strings"
)

var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the version string. Outside a tagged checkout a git
// describe suffix is appended; without git, the VCS revision embedded by
// the Go toolchain is used instead.
func Resolve() string {
	return resolveVersion(Version, runGit, buildRevision)
}

func resolveVersion(base string, git func(...string) (string, error), revision func() string) string {
	if base == "" {
		base = "0.0.0"
	}

	if suffix := computeGitSuffix(base, git); suffix != "" {
		return base + "-" + suffix
	}
	if _, err := git("rev-parse", "--git-dir"); err == nil {
		return base
	}

	if revision != nil {
		if rev := revision(); rev != "" {
			return base + "+" + rev
		}
	}
	return base
}

func computeGitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(desc, "v"+base+"-")
}

func buildRevision() string {
	if Commit != "" && Commit != "unknown" {
		return shortRevision(Commit)
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return shortRevision(setting.Value)
		}
	}
	return ""
}

func shortRevision(rev string) string {
	rev = strings.TrimSpace(rev)
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
