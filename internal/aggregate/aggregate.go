package aggregate

import (
	"github.com/researchgpt/orchestrator/internal/backend"
	"github.com/researchgpt/orchestrator/internal/metrics"
	"github.com/researchgpt/orchestrator/internal/models"
)

// FlatBucket is the synthetic subtopic label used when the backend sends
// an ungrouped resource list.
const FlatBucket = "Main Resources"

// Payload is the resolved shape of a raw resource response. Exactly one
// of ByGroup or Flat is populated; the choice is made once, here at the
// aggregator boundary, instead of re-branching downstream.
type Payload struct {
	ByGroup         []models.SubtopicResources
	Flat            []models.WebResource
	InlineSummaries map[string]string
}

// Resolve classifies a backend resource response into a tagged Payload.
// Grouped buckets are preferred when both shapes are present.
func Resolve(r *backend.ResourcesResponse) Payload {
	p := Payload{InlineSummaries: map[string]string(r.URLSummaries)}
	if len(r.ResourcesBySubtopic) > 0 {
		p.ByGroup = []models.SubtopicResources(r.ResourcesBySubtopic)
		return p
	}
	p.Flat = r.Resources
	return p
}

// ResolveImmediate adapts the flat web_resources list of an immediate
// submit payload into the same tagged shape.
func ResolveImmediate(ir *backend.ImmediateResults) Payload {
	return Payload{
		Flat:            ir.WebResources,
		InlineSummaries: map[string]string(ir.URLSummaries),
	}
}

// Transform filters a payload into capped subtopic buckets. It is pure:
// identical payloads yield identical output, and input order is preserved
// exactly (first seen, first served; no scoring, no reordering).
//
// Per bucket the rule is: a per-domain counter is incremented for every
// resource of that domain, admitted or not; a resource is admitted only
// when its counter before increment is below domainCap and fewer than
// bucketCap resources have been admitted. Counting continues after the
// bucket fills so the domain stats stay truthful.
func Transform(p Payload, bucketCap, domainCap int) []models.SubtopicResources {
	buckets := p.ByGroup
	if buckets == nil {
		if len(p.Flat) == 0 {
			return nil
		}
		buckets = []models.SubtopicResources{{Subtopic: FlatBucket, Resources: p.Flat}}
	}

	out := make([]models.SubtopicResources, 0, len(buckets))
	for _, b := range buckets {
		domainCount := make(map[string]int)
		admitted := make([]models.WebResource, 0, bucketCap)
		for _, r := range b.Resources {
			d := Domain(r.URL)
			seen := domainCount[d]
			domainCount[d]++
			if seen >= domainCap || len(admitted) >= bucketCap {
				metrics.ResourcesFiltered.Inc()
				continue
			}
			r.Domain = d
			admitted = append(admitted, r)
			metrics.ResourcesAdmitted.Inc()
		}
		out = append(out, models.SubtopicResources{Subtopic: b.Subtopic, Resources: admitted})
	}
	return out
}
