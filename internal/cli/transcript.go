package cli

import "strings"

func isBlankTranscript(transcript string) bool {
	return strings.TrimSpace(transcript) == ""
}

func noSpeechHint() string {
	return "Transcript is empty. Check that the file contains audible speech and that --language matches it."
}
