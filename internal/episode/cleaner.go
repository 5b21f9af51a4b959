// Package episode implements the Episode Pipeline (C6): the linear
// gather -> script -> edit -> synthesize -> publish state machine that
// owns the system-wide production lock while it runs.
package episode

import (
	"regexp"
	"strings"
)

var (
	thinkBlockRe  = regexp.MustCompile(`(?is)<think>.*?</think>`)
	sectionMarkRe = regexp.MustCompile(`(?i)===\s*([A-Z ]+?)\s*===`)
	speakerBoldRe = regexp.MustCompile(`\*\*(Speaker\s+\d+):\*\*`)
	boldRe        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe      = regexp.MustCompile(`\*([^*]+)\*`)
	threeBlankRe  = regexp.MustCompile(`\n{3,}`)
	speakerLineRe = regexp.MustCompile(`^Speaker\s+\d+:`)
)

// CleanScript applies the deterministic transform shared by the script
// and edit stages to any text that will be fed to TTS. It is pure
// and idempotent: CleanScript(CleanScript(x)) == CleanScript(x) for all x.
func CleanScript(text string) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = stripReviewSections(text)
	text = speakerBoldRe.ReplaceAllString(text, "$1:")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = threeBlankRe.ReplaceAllString(text, "\n\n")
	text = retainSpeakerLines(text)
	// retainSpeakerLines can drop a stray non-speaker line that sat
	// between two blank lines, turning them into a fresh run of 3+
	// blank lines. Collapse again so the result stays idempotent.
	text = threeBlankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// stripReviewSections removes any "=== LABEL ===" marker whose label is
// REVIEW or REVIEW NOTES, along with everything that follows it to the
// end of the string. Markers with other labels are stripped but their
// following content is kept.
func stripReviewSections(text string) string {
	matches := sectionMarkRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		label := strings.ToUpper(strings.TrimSpace(text[m[2]:m[3]]))
		if label == "REVIEW" || label == "REVIEW NOTES" {
			return text[:m[0]]
		}
	}
	return sectionMarkRe.ReplaceAllString(text, "")
}

// retainSpeakerLines keeps only lines that start with "Speaker <N>:" or
// are immediate continuations of such a line, up to the next Speaker
// line or blank line.
func retainSpeakerLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	inSpeaker := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		switch {
		case speakerLineRe.MatchString(trimmed):
			inSpeaker = true
			out = append(out, trimmed)
		case strings.TrimSpace(trimmed) == "":
			inSpeaker = false
			out = append(out, "")
		case inSpeaker:
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
