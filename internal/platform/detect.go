package platform

import "strings"

// HasDisplay reports whether a native dialog can be shown. macOS and
// Windows always have one. Elsewhere an X11 or Wayland session is needed.
func HasDisplay(goos string, getenv func(string) string) bool {
	switch goos {
	case "darwin", "windows":
		return true
	}

	if getenv == nil {
		return false
	}
	return strings.TrimSpace(getenv("DISPLAY")) != "" || strings.TrimSpace(getenv("WAYLAND_DISPLAY")) != ""
}

// DesktopSession returns the lower-cased XDG_CURRENT_DESKTOP entries,
// e.g. ["ubuntu", "gnome"].
func DesktopSession(getenv func(string) string) []string {
	if getenv == nil {
		return nil
	}

	raw := strings.TrimSpace(getenv("XDG_CURRENT_DESKTOP"))
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ":") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PrefersKDE is true when the session is a KDE/Plasma desktop.
func PrefersKDE(getenv func(string) string) bool {
	for _, d := range DesktopSession(getenv) {
		if d == "kde" || d == "plasma" {
			return true
		}
	}
	return false
}
