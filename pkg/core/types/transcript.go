package types

import "strings"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerCandidate Speaker = "candidate"
	SpeakerAgent     Speaker = "agent"
)

// TranscriptEntry is one spoken line of an interview.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// JoinTranscript renders entries in order, one "speaker: text" line each.
func JoinTranscript(entries []TranscriptEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(e.Speaker))
		b.WriteString(": ")
		b.WriteString(e.Text)
	}
	return b.String()
}
