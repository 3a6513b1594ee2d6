package report

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/researchgpt/orchestrator/internal/metrics"
	"github.com/researchgpt/orchestrator/internal/models"
)

// Assemble builds the sectioned report document from the final query,
// the executive summary, and the collected summary set. Deterministic:
// sections follow summary insertion order, references are numbered by
// hostname, and the same inputs always produce the same document.
func Assemble(query, summary string, set *models.SummarySet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Comprehensive Report on %s\n\n", query)
	b.WriteString("## Executive Summary\n\n")
	if summary == "" {
		summary = fmt.Sprintf("Research on %s completed.", query)
	}
	b.WriteString(summary)
	b.WriteString("\n\n---\n\n")

	type source struct {
		url   string
		label string
		text  string
	}
	var sources []source
	if set != nil {
		set.Range(func(u string, e models.SummaryEntry) bool {
			if e.Loading {
				return true
			}
			sources = append(sources, source{url: u, text: e.Text})
			return true
		})
	}
	for i := range sources {
		sources[i].label = hostLabel(sources[i].url, i+1)
	}

	if len(sources) == 0 {
		// Explicit placeholder: the report never has a missing body.
		b.WriteString("### No Summaries Available\n\n")
		b.WriteString("No source summaries were collected for this research task.\n\n")
	} else {
		for i, s := range sources {
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, s.label)
			text := s.text
			if text == "" {
				text = "No summary text available."
			}
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("---\n\n## References\n\n")
	if len(sources) == 0 {
		b.WriteString("No references.\n")
	} else {
		for i, s := range sources {
			fmt.Fprintf(&b, "%d. %s — %s\n", i+1, s.label, s.url)
		}
	}

	metrics.ReportsAssembled.Inc()
	return b.String()
}

// hostLabel extracts the hostname for a reference label, falling back to
// "Source N" for unparseable URLs instead of failing.
func hostLabel(raw string, n int) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return fmt.Sprintf("Source %d", n)
	}
	return u.Hostname()
}
