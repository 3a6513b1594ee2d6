package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/researchgpt/orchestrator/internal/models"
)

func TestAssembleRoundTrip(t *testing.T) {
	set := models.NewSummarySet()
	set.Set("https://a.com/x", models.SummaryEntry{Text: "text1"})

	doc := Assemble("Q", "S", set)
	lines := strings.Split(doc, "\n")

	require.Contains(t, lines, "# Comprehensive Report on Q")
	require.Contains(t, doc, "## Executive Summary")
	require.Contains(t, doc, "S")
	require.Contains(t, doc, "text1")
	require.Contains(t, doc, "### 1. a.com")
	require.Contains(t, lines, "1. a.com — https://a.com/x")
}

func TestAssembleSectionsFollowInsertionOrder(t *testing.T) {
	set := models.NewSummarySet()
	set.Set("https://z.com/1", models.SummaryEntry{Text: "zed"})
	set.Set("https://a.com/1", models.SummaryEntry{Text: "ay"})

	doc := Assemble("Q", "S", set)
	require.Less(t, strings.Index(doc, "z.com"), strings.Index(doc, "a.com"))

	// Deterministic: same inputs, same document.
	require.Equal(t, doc, Assemble("Q", "S", set))
}

func TestAssembleZeroSummariesPlaceholder(t *testing.T) {
	doc := Assemble("Q", "S", models.NewSummarySet())
	require.Contains(t, doc, "### No Summaries Available")
	require.Contains(t, doc, "No references.")

	doc = Assemble("Q", "S", nil)
	require.Contains(t, doc, "### No Summaries Available")
}

func TestAssembleSkipsLoadingEntries(t *testing.T) {
	set := models.NewSummarySet()
	set.Set("https://a.com/1", models.SummaryEntry{Text: "done"})
	set.Set("https://b.com/1", models.SummaryEntry{Loading: true})

	doc := Assemble("Q", "S", set)
	require.Contains(t, doc, "a.com")
	require.NotContains(t, doc, "b.com")
}

func TestAssembleUnparseableURLFallsBackToSourceN(t *testing.T) {
	set := models.NewSummarySet()
	set.Set("::junk::", models.SummaryEntry{Text: "something"})
	set.Set("https://ok.com/1", models.SummaryEntry{Text: "fine"})

	doc := Assemble("Q", "S", set)
	require.Contains(t, doc, "### 1. Source 1")
	require.Contains(t, doc, "### 2. ok.com")
	require.Contains(t, doc, "1. Source 1 — ::junk::")
}

func TestRenderClassifiesPrefixes(t *testing.T) {
	doc := "# Title\n## Section\n### Sub\n---\nplain text\n"
	lines := Render(doc)

	require.Equal(t, LineHeading1, lines[0].Kind)
	require.Equal(t, "Title", lines[0].Text)
	require.Equal(t, LineHeading2, lines[1].Kind)
	require.Equal(t, LineHeading3, lines[2].Kind)
	require.Equal(t, LineRule, lines[3].Kind)
	require.Equal(t, LineText, lines[4].Kind)
	require.Equal(t, "plain text", lines[4].Text)
}

func TestRenderIsStateless(t *testing.T) {
	doc := Assemble("Q", "S", nil)
	first := Render(doc)
	second := Render(doc)
	require.Equal(t, first, second)

	// The full structure is re-derivable from the text alone: every
	// heading in the document appears classified, none invented.
	h1 := 0
	for _, l := range first {
		if l.Kind == LineHeading1 {
			h1++
		}
	}
	require.Equal(t, 1, h1)
}
