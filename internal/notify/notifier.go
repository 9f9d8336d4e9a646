// Package notify formats positive predictions into alerts and delivers
// them through a messaging channel.
package notify

import (
	"context"
	"strings"
	"unicode/utf16"
)

// MessageLimit is the maximum Telegram message length in UTF-16 code units.
const MessageLimit = 4096

// Notifier delivers one text message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TextLen returns the length of s in UTF-16 code units, the unit Telegram
// counts against MessageLimit.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16Len(r)
	}
	return n
}

func utf16Len(r rune) int {
	// Encode yields one unit (U+FFFD) for invalid runes, which are sent as
	// U+FFFD; equivalent to utf16.RuneLen (Go 1.23+) with that fallback.
	return len(utf16.Encode([]rune{r}))
}

// SplitMessage breaks text into chunks of at most limit UTF-16 units,
// cutting at blank lines where possible so token blocks stay whole.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || TextLen(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}

	for _, block := range strings.SplitAfter(text, "\n\n") {
		n := TextLen(block)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			// A single block longer than the limit is hard-cut.
			head, tail, used := cutUnits(block, limit)
			chunks = append(chunks, head)
			block, n = tail, n-used
		}
		cur.WriteString(block)
		curLen += n
	}
	flush()
	return chunks
}

// cutUnits splits s after at most limit UTF-16 units without breaking a
// surrogate pair. At least one rune is always taken.
func cutUnits(s string, limit int) (head, tail string, used int) {
	for pos, r := range s {
		w := utf16Len(r)
		if used+w > limit && pos > 0 {
			return s[:pos], s[pos:], used
		}
		used += w
	}
	return s, "", used
}
