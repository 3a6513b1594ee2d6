package models

import (
	"bytes"
	"encoding/json"
)

// SummaryEntry is the stored summary state for one URL.
// An entry is never simultaneously loading and populated.
type SummaryEntry struct {
	Text    string `json:"text"`
	Loading bool   `json:"loading"`
}

// SummarySet is an insertion-ordered map from URL to SummaryEntry.
// Order matters: report sections follow first-insertion order.
// Not safe for concurrent use; callers hold their own lock.
type SummarySet struct {
	order   []string
	entries map[string]SummaryEntry
}

func NewSummarySet() *SummarySet {
	return &SummarySet{entries: make(map[string]SummaryEntry)}
}

// Get returns the entry for url and whether it exists.
func (s *SummarySet) Get(url string) (SummaryEntry, bool) {
	e, ok := s.entries[url]
	return e, ok
}

// Set installs or replaces the entry for url. First insertion fixes the
// URL's position in iteration order; updates keep it.
func (s *SummarySet) Set(url string, e SummaryEntry) {
	if _, ok := s.entries[url]; !ok {
		s.order = append(s.order, url)
	}
	s.entries[url] = e
}

// Len returns the number of entries, loading ones included.
func (s *SummarySet) Len() int { return len(s.entries) }

// URLs returns the URLs in insertion order.
func (s *SummarySet) URLs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (s *SummarySet) Range(fn func(url string, e SummaryEntry) bool) {
	for _, u := range s.order {
		if !fn(u, s.entries[u]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (s *SummarySet) Clone() *SummarySet {
	out := NewSummarySet()
	out.order = make([]string, len(s.order))
	copy(out.order, s.order)
	for k, v := range s.entries {
		out.entries[k] = v
	}
	return out
}

// MarshalJSON emits entries as a JSON object in insertion order, so the
// serialization is canonical for a given logical state.
func (s *SummarySet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, u := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(u)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.entries[u])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
