// Package merge joins the transcripts of consecutive chunks of one
// recording.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one segment of a timestamped transcript. Unknown keys are
// kept as they are.
type Entry map[string]any

// Text joins chunk transcripts with newlines. A chunk that is a JSON array
// of segments contributes one line per segment, prefixed with
// "<speaker>: " when includeSpeaker is set and the segment names one.
// Anything else is taken verbatim.
func Text(results []string, includeSpeaker bool) string {
	var lines []string
	for _, result := range results {
		entries, ok := parseEntries(result)
		if !ok {
			lines = append(lines, result)
			continue
		}

		for _, entry := range entries {
			text := stringField(entry, "text")
			if speaker, ok := entry["speaker"]; includeSpeaker && ok {
				text = fmt.Sprintf("%v: %s", speaker, text)
			}
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// JSON concatenates timestamped chunk transcripts into one array. Each
// chunk's start/end values are shifted by the end of the previous chunk's
// last segment. Chunks that are not JSON arrays are dropped.
func JSON(results []string) (string, error) {
	merged := make([]Entry, 0)
	offset := 0.0

	for _, result := range results {
		entries, ok := parseEntries(result)
		if !ok {
			continue
		}

		for _, entry := range entries {
			shift(entry, "start", offset)
			shift(entry, "end", offset)
			merged = append(merged, entry)
		}

		if len(entries) > 0 {
			if end, ok := entries[len(entries)-1]["end"].(float64); ok {
				offset = end
			}
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(merged); err != nil {
		return "", fmt.Errorf("encode merged transcript: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func parseEntries(raw string) ([]Entry, bool) {
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	if entries == nil {
		return nil, false
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry != nil {
			kept = append(kept, entry)
		}
	}
	return kept, true
}

func shift(entry Entry, key string, offset float64) {
	if v, ok := entry[key].(float64); ok {
		entry[key] = v + offset
	}
}

func stringField(entry Entry, key string) string {
	switch v := entry[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
