package prompt

import "strings"

// sentenceScanWindow is how far into a truncated tail Truncate looks for ". "
const sentenceScanWindow = 200

// Truncate keeps the last n runes of text. When a ". " appears within the
// first 200 runes of that tail, everything up to and including it is
// dropped so the result starts on a sentence. Truncated output is prefixed
// with "..." and is never longer than n+3 runes.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	tail := runes[len(runes)-n:]
	// the cut must leave at least one rune so the source ending survives
	for i := 0; i < sentenceScanWindow && i+2 < len(tail); i++ {
		if tail[i] == '.' && tail[i+1] == ' ' {
			tail = tail[i+2:]
			break
		}
	}

	return "..." + string(tail)
}

// SplitLines splits model output into trimmed, non-empty lines
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
