package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientSendsBearerTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Path != "/api/jobs/crawl" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req CrawlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(AcceptedResponse{Success: true, JobID: "job-1", SourceID: "example.com"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	resp, err := client.SubmitCrawl(context.Background(), CrawlRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("SubmitCrawl: %v", err)
	}
	if resp.JobID != "job-1" || resp.SourceID != "example.com" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientSurfacesErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "job nope not found", Kind: "not_found"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Job(context.Background(), "nope")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Kind != "not_found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestClientEventsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/job-9/events" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("since") != "4" || r.URL.Query().Get("wait") != "2s" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(EventsResponse{Events: []Event{{Sequence: 5, JobID: "job-9", Type: "progress"}}, Next: 5})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "").Events(context.Background(), "job-9", 4, 2*time.Second)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if resp.Next != 5 || len(resp.Events) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientMultipartUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("folder_name"); got != "docs" {
			t.Errorf("unexpected folder name %q", got)
		}
		if got := r.FormValue("tags"); got != `["a","b"]` {
			t.Errorf("unexpected tags %q", got)
		}
		if n := len(r.MultipartForm.File["files"]); n != 2 {
			t.Errorf("expected 2 files, got %d", n)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(AcceptedResponse{Success: true, JobID: "job-3", FileCount: 2})
	}))
	defer srv.Close()

	files := []Upload{{Name: "a.md", Content: []byte("# A")}, {Name: "b.txt", Content: []byte("B")}}
	resp, err := NewClient(srv.URL, "").SubmitFolder(context.Background(), "docs", files, UploadOptions{Tags: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("SubmitFolder: %v", err)
	}
	if resp.FileCount != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}
