package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/researchgpt/orchestrator/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, 0, zap.NewNop())
}

func TestSubmit(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/research", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "solar storms", body["query"])
		require.NotEmpty(t, body["request_id"])
		json.NewEncoder(w).Encode(map[string]any{
			"task_id": "task_42",
			"status":  "pending",
			"message": "Research task started",
		})
	}))

	resp, err := c.Submit(context.Background(), "solar storms", "req-1")
	require.NoError(t, err)
	require.Equal(t, "task_42", resp.TaskID)
	require.Equal(t, "pending", resp.Status)
}

func TestSubmitMissingTaskID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}))

	_, err := c.Submit(context.Background(), "q", "req-1")
	require.ErrorIs(t, err, models.ErrProtocol)
}

func TestTaskStatusDistinguishesMissingField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	resp, err := c.TaskStatus(context.Background(), "task_1")
	require.NoError(t, err)
	require.Nil(t, resp.Status)
}

func TestTaskStatusFields(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/research/task_1", r.URL.Path)
		w.Write([]byte(`{"status":"pending","current_step":3,"progress":0.4,"status_details":"Searching sources"}`))
	}))

	resp, err := c.TaskStatus(context.Background(), "task_1")
	require.NoError(t, err)
	require.NotNil(t, resp.Status)
	require.Equal(t, "pending", *resp.Status)
	require.Equal(t, 3, resp.CurrentStep)
	require.InDelta(t, 0.4, resp.Progress, 1e-9)
	require.Equal(t, "Searching sources", resp.StatusDetails)
}

func TestWebResourcesOrderedDecode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"resources_by_subtopic": {
				"Zeta": [{"url":"https://z.com/1","title":"Z"}],
				"Alpha": [{"url":"https://a.com/1","title":"A"}],
				"Midway": [{"url":"https://m.com/1","title":"M"}]
			},
			"url_summaries": {
				"https://z.com/1": "plain text summary",
				"https://a.com/1": {"title":"A","summary":"object summary"}
			}
		}`))
	}))

	resp, err := c.WebResources(context.Background(), "task_1")
	require.NoError(t, err)

	var order []string
	for _, b := range resp.ResourcesBySubtopic {
		order = append(order, b.Subtopic)
	}
	// Server key order, not Go map order.
	require.Equal(t, []string{"Zeta", "Alpha", "Midway"}, order)

	require.Equal(t, "plain text summary", resp.URLSummaries["https://z.com/1"])
	require.Equal(t, "object summary", resp.URLSummaries["https://a.com/1"])
}

func TestWebResourcesErrorBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"search backend unavailable"}`))
	}))

	_, err := c.WebResources(context.Background(), "task_1")
	require.ErrorIs(t, err, models.ErrFetchFailed)
	require.Contains(t, err.Error(), "search backend unavailable")
}

func TestWebResourcesNonSuccessStatusCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.WebResources(context.Background(), "task_1")
	require.ErrorIs(t, err, models.ErrFetchFailed)
}

func TestSummarizeURL(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/summarize-url", r.URL.Path)
		require.Equal(t, "https://a.com/x?q=1", r.URL.Query().Get("url"))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "summary": "short text"})
	}))

	text, err := c.SummarizeURL(context.Background(), "https://a.com/x?q=1")
	require.NoError(t, err)
	require.Equal(t, "short text", text)
}

func TestSummarizeURLServerFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "content blocked"})
	}))

	_, err := c.SummarizeURL(context.Background(), "https://a.com/x")
	require.ErrorIs(t, err, models.ErrSummaryFetchFailed)
	require.Contains(t, err.Error(), "content blocked")
}

func TestSearchQueries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/search-queries", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"query":          "fusion",
			"search_queries": []string{"fusion research paper", "fusion criticism"},
		})
	}))

	qs, err := c.SearchQueries(context.Background(), "fusion")
	require.NoError(t, err)
	require.Equal(t, []string{"fusion research paper", "fusion criticism"}, qs)
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/download", r.URL.Path)
		require.Equal(t, "reports/task_1_report.md", r.URL.Query().Get("path"))
		w.Write([]byte("# report"))
	}))

	data, err := c.Download(context.Background(), "reports/task_1_report.md")
	require.NoError(t, err)
	require.Equal(t, []byte("# report"), data)
}

func TestClearCacheNeverFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	// Fire-and-forget: must not panic or propagate anything.
	c.ClearCache(context.Background())
}

func TestTransportErrorIsNotTaxonomyError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond, 0, zap.NewNop())
	_, err := c.TaskStatus(context.Background(), "task_1")
	require.Error(t, err)
	require.False(t, errors.Is(err, models.ErrProtocol))
}
