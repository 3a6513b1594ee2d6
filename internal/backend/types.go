package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/researchgpt/orchestrator/internal/models"
)

// SubmitResponse is the body returned by POST /api/research.
type SubmitResponse struct {
	TaskID           string            `json:"task_id"`
	Status           string            `json:"status"`
	Message          string            `json:"message"`
	ImmediateResults *ImmediateResults `json:"immediate_results,omitempty"`
}

// ImmediateResults is the early payload the backend computes while the
// full research task is still queued.
type ImmediateResults struct {
	Summary      string               `json:"summary"`
	Subtopics    []string             `json:"subtopics"`
	WebResources []models.WebResource `json:"web_resources"`
	URLSummaries InlineSummaries      `json:"url_summaries"`
}

// StatusResponse is the body returned by GET /api/research/{id}.
// Status is a pointer so a missing field is distinguishable from an
// empty one; the poller treats absence as a protocol violation.
type StatusResponse struct {
	TaskID        string   `json:"task_id"`
	Status        *string  `json:"status"`
	CurrentStep   int      `json:"current_step"`
	Progress      float64  `json:"progress"`
	StatusDetails string   `json:"status_details"`
	Message       string   `json:"message"`
	Query         string   `json:"query"`
	Summary       string   `json:"summary"`
	Subtopics     []string `json:"subtopics"`
	MDPath        string   `json:"md_path"`
	PDFPath       string   `json:"pdf_path"`
}

// ResourcesResponse is the body returned by GET /api/research/{id}/web-resources.
// The backend sends either grouped buckets or a flat list, plus optional
// inline summaries.
type ResourcesResponse struct {
	TaskID              string               `json:"task_id"`
	Query               string               `json:"query"`
	Status              string               `json:"status"`
	Message             string               `json:"message"`
	ResourcesBySubtopic OrderedBuckets       `json:"resources_by_subtopic"`
	Resources           []models.WebResource `json:"resources"`
	URLSummaries        InlineSummaries      `json:"url_summaries"`
	TotalResults        int                  `json:"total_results"`
}

// SummarizeResponse is the body returned by /api/summarize-url.
type SummarizeResponse struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

// SearchQueriesResponse is the body returned by GET /api/search-queries.
type SearchQueriesResponse struct {
	Query         string   `json:"query"`
	SearchQueries []string `json:"search_queries"`
}

// OrderedBuckets decodes a JSON object of subtopic -> resource list while
// preserving the server's key order. encoding/json maps would lose it,
// and bucket order is part of the aggregation contract.
type OrderedBuckets []models.SubtopicResources

func (b *OrderedBuckets) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*b = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("resources_by_subtopic: expected object, got %v", tok)
	}
	var out OrderedBuckets
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("resources_by_subtopic: non-string key %v", keyTok)
		}
		var resources []models.WebResource
		if err := dec.Decode(&resources); err != nil {
			return fmt.Errorf("resources_by_subtopic[%q]: %w", key, err)
		}
		out = append(out, models.SubtopicResources{Subtopic: key, Resources: resources})
	}
	*b = out
	return nil
}

// InlineSummaries decodes url_summaries whose values are either a bare
// string or an object {title, summary}. Both shapes exist in the backend;
// unknown shapes are skipped rather than failing the whole payload.
type InlineSummaries map[string]string

func (s *InlineSummaries) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(InlineSummaries, len(raw))
	for url, val := range raw {
		var text string
		if err := json.Unmarshal(val, &text); err == nil {
			out[url] = text
			continue
		}
		var obj struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(val, &obj); err == nil && obj.Summary != "" {
			out[url] = obj.Summary
		}
	}
	*s = out
	return nil
}
