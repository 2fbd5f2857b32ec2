// Package markup interprets the small formatting subset used in assistant
// messages: bold headings, bullet lines, alert lines and inline emphasis.
// It only affects display; stored content is never rewritten.
package markup

import "strings"

// Kind classifies one line of content.
type Kind string

const (
	Heading Kind = "heading" // a line wrapped in **
	Bullet  Kind = "bullet"  // a line starting with "• " or "- "
	Alert   Kind = "alert"   // a line carrying a warning or siren marker
	Text    Kind = "text"
	Blank   Kind = "blank"
)

// Alert markers, removed from the rendered text.
var alertMarkers = []string{"⚠️", "🚨"}

// Span is a run of inline text with uniform styling.
type Span struct {
	Text     string `json:"text"`
	Bold     bool   `json:"bold,omitempty"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Block is one classified line.
type Block struct {
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
	Spans []Span `json:"spans,omitempty"`
}

// Parse splits content into lines and classifies each one.
func Parse(content string) []Block {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, parseLine(line))
	}
	return blocks
}

func parseLine(line string) Block {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Block{Kind: Blank}
	case len(trimmed) > 4 && strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**"):
		text := trimmed[2 : len(trimmed)-2]
		return Block{Kind: Heading, Text: text, Spans: []Span{{Text: text, Bold: true}}}
	case strings.HasPrefix(trimmed, "• "), strings.HasPrefix(trimmed, "- "):
		text := strings.TrimSpace(trimmed[strings.Index(trimmed, " ")+1:])
		return Block{Kind: Bullet, Text: stripInline(text), Spans: spans(text)}
	case hasAlertMarker(trimmed):
		text := trimmed
		for _, m := range alertMarkers {
			text = strings.ReplaceAll(text, m, "")
		}
		text = strings.TrimSpace(text)
		return Block{Kind: Alert, Text: stripInline(text), Spans: spans(text)}
	default:
		return Block{Kind: Text, Text: stripInline(trimmed), Spans: spans(trimmed)}
	}
}

func hasAlertMarker(s string) bool {
	for _, m := range alertMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// spans splits s on ** (bold) and * (emphasis) toggles. Unclosed markers are
// kept literally.
func spans(s string) []Span {
	var (
		out      []Span
		buf      strings.Builder
		bold, em bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, Span{Text: buf.String(), Bold: bold, Emphasis: em})
			buf.Reset()
		}
	}

	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "**") && (bold || strings.Contains(s[i+2:], "**")):
			flush()
			bold = !bold
			i += 2
		case s[i] == '*' && (em || strings.Contains(s[i+1:], "*")):
			flush()
			em = !em
			i++
		default:
			buf.WriteByte(s[i])
			i++
		}
	}
	flush()
	return out
}

func stripInline(s string) string {
	var b strings.Builder
	for _, sp := range spans(s) {
		b.WriteString(sp.Text)
	}
	return b.String()
}

// Plain renders content as unformatted text, one line per non-blank block.
// Bullets keep a leading dash so spoken lists still read as lists.
func Plain(content string) string {
	var lines []string
	for _, b := range Parse(content) {
		switch b.Kind {
		case Blank:
			continue
		case Bullet:
			lines = append(lines, "- "+b.Text)
		default:
			lines = append(lines, b.Text)
		}
	}
	return strings.Join(lines, "\n")
}
