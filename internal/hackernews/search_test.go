package hackernews

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(context.Background(), zap.NewNop())
	client.APIURL = server.URL

	return client, server
}

func TestLatestHiringStory(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tags"); got != "story,author_whoishiring" {
			t.Errorf("unexpected tags: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{"objectID": "900", "title": "Ask HN: Who wants to be hired? (August 2026)", "author": "whoishiring"},
				{"objectID": "901", "title": "Ask HN: Who is hiring? (August 2026)", "author": "whoishiring"},
			},
			"nbPages": 1,
			"page":    0,
		})
	}))

	story, err := client.LatestHiringStory()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if story.ID != "901" {
		t.Fatalf("expected hiring story 901, got %q", story.ID)
	}
}

func TestSearchPaginatesAndFiltersTopLevel(t *testing.T) {
	pages := []map[string]any{
		{
			"hits": []map[string]any{
				{"objectID": "1", "comment_text": "Acme | Go Engineer | Remote<p>Backend services in Go.", "parent_id": 901, "story_id": 901},
				{"objectID": "2", "comment_text": "Is this remote?", "parent_id": 1, "story_id": 901},
			},
			"nbPages": 2, "page": 0, "hitsPerPage": 2,
		},
		{
			"hits": []map[string]any{
				{"objectID": "3", "comment_text": "Globex | Python Engineer | Onsite NYC<p>Data pipelines.", "parent_id": 901, "story_id": 901},
			},
			"nbPages": 2, "page": 1, "hitsPerPage": 2,
		},
	}

	var requests int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := 0
		if r.URL.Query().Get("page") == "1" {
			page = 1
		}
		json.NewEncoder(w).Encode(pages[page])
	}))

	jobs, err := client.Search(&SearchParams{StoryID: "901", Terms: []string{"go"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if requests != 2 {
		t.Fatalf("expected 2 paged requests, got %d", requests)
	}

	if jobs.Len() != 1 {
		t.Fatalf("expected 1 matching job, got %d: %v", jobs.Len(), jobs.IDs())
	}

	job := jobs.Items[0]
	if job.ID != "1" || job.Company != "Acme" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSearchAppliesLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{"objectID": "1", "comment_text": "A | Go Dev | Remote", "parent_id": 901, "story_id": 901},
				{"objectID": "2", "comment_text": "B | Go Dev | Remote", "parent_id": 901, "story_id": 901},
				{"objectID": "3", "comment_text": "C | Go Dev | Remote", "parent_id": 901, "story_id": 901},
			},
			"nbPages": 1, "page": 0,
		})
	}))

	jobs, err := client.Search(&SearchParams{StoryID: "901", Limit: 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if jobs.Len() != 2 {
		t.Fatalf("expected limit of 2, got %d", jobs.Len())
	}
}

func TestGetItemsHandlesGzip(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		json.NewEncoder(gz).Encode(map[string]any{
			"hits":    []map[string]any{{"objectID": "1"}},
			"nbPages": 1,
			"page":    0,
		})
	}))

	items, err := client.GetItems(client.APIURL+SearchPath, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestSearchBadStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))

	if _, err := client.Search(&SearchParams{StoryID: "901"}); err == nil {
		t.Fatal("expected error on bad status")
	}
}
