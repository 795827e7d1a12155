package media

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Extensions lists the media types offered by the file picker.
var Extensions = []string{"mp3", "wav", "mov", "mp4", "m4a", "aac", "wma", "ogg"}

var mimeTypes = map[string]string{
	"wav": "audio/wav",
	"mp3": "audio/mpeg",
	"m4a": "audio/mp4",
	"mp4": "audio/mp4",
}

const fallbackMIMEType = "application/octet-stream"

func extOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func IsSupported(path string) bool {
	return lo.Contains(Extensions, extOf(path))
}

// MIMEType returns the upload content type for path.
func MIMEType(path string) string {
	if mime, ok := mimeTypes[extOf(path)]; ok {
		return mime
	}
	return fallbackMIMEType
}

// GlobPatterns returns "*.ext" for every supported extension.
func GlobPatterns() []string {
	return lo.Map(Extensions, func(ext string, _ int) string {
		return "*." + ext
	})
}
