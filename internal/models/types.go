package models

import "time"

// TaskStatus is the lifecycle state of a server-tracked research task.
type TaskStatus string

const (
	StatusUnknown   TaskStatus = "unknown"
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
	StatusError     TaskStatus = "error"
)

// ParseTaskStatus maps a wire status string to a TaskStatus.
// Unrecognized strings map to StatusUnknown; callers decide how to react.
func ParseTaskStatus(s string) TaskStatus {
	switch s {
	case "pending":
		return StatusPending
	case "completed":
		return StatusCompleted
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}

// ResearchTask is the client-side view of one research session.
// Mutated only by the orchestration layer; consumers get copies.
type ResearchTask struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	Status      TaskStatus `json:"status"`
	CurrentStep int        `json:"current_step"`
	Progress    float64    `json:"progress"`
	Summary     string     `json:"summary"`
	Subtopics   []string   `json:"subtopics"`
	Message     string     `json:"message"`
	MDPath      string     `json:"md_path,omitempty"`
	PDFPath     string     `json:"pdf_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WebResource is one search result. Immutable once fetched.
type WebResource struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// SubtopicResources is one named bucket of resources. Buckets are kept in
// a slice so server ordering survives aggregation and serialization.
type SubtopicResources struct {
	Subtopic  string        `json:"subtopic"`
	Resources []WebResource `json:"resources"`
}

// AggregatedResult is the unit broadcast to consumers: the filtered
// resource buckets plus the current summary set, as an immutable snapshot.
type AggregatedResult struct {
	Resources []SubtopicResources `json:"resources"`
	Summaries *SummarySet         `json:"summaries"`
}

// Clone returns a deep copy safe to hand to a consumer.
func (a AggregatedResult) Clone() AggregatedResult {
	out := AggregatedResult{}
	if a.Resources != nil {
		out.Resources = make([]SubtopicResources, len(a.Resources))
		for i, b := range a.Resources {
			rs := make([]WebResource, len(b.Resources))
			copy(rs, b.Resources)
			out.Resources[i] = SubtopicResources{Subtopic: b.Subtopic, Resources: rs}
		}
	}
	if a.Summaries != nil {
		out.Summaries = a.Summaries.Clone()
	}
	return out
}
