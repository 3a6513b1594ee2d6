package report

import "strings"

// LineKind classifies one rendered line of a report document.
type LineKind int

const (
	LineText LineKind = iota
	LineHeading1
	LineHeading2
	LineHeading3
	LineRule
)

// Line is one classified line with its prefix stripped.
type Line struct {
	Kind LineKind
	Text string
}

// Render classifies a document into display lines. It is a pure, stateless
// transform over line-prefix conventions ("# ", "## ", "### ", "---");
// the full visual structure is re-derivable from the text alone.
func Render(doc string) []Line {
	raw := strings.Split(doc, "\n")
	out := make([]Line, 0, len(raw))
	for _, l := range raw {
		switch {
		case strings.HasPrefix(l, "### "):
			out = append(out, Line{Kind: LineHeading3, Text: strings.TrimPrefix(l, "### ")})
		case strings.HasPrefix(l, "## "):
			out = append(out, Line{Kind: LineHeading2, Text: strings.TrimPrefix(l, "## ")})
		case strings.HasPrefix(l, "# "):
			out = append(out, Line{Kind: LineHeading1, Text: strings.TrimPrefix(l, "# ")})
		case strings.TrimSpace(l) == "---":
			out = append(out, Line{Kind: LineRule})
		default:
			out = append(out, Line{Kind: LineText, Text: l})
		}
	}
	return out
}
