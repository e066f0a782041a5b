package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 64 * 1024

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Message    string
	Kind       string
	Hint       string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Upload is one file sent with a document or folder submission.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// UploadOptions carries the classification shared by upload submissions.
type UploadOptions struct {
	KnowledgeType string
	Tags          []string
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport (used in tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client for addr, which may be a host:port bind address
// or a full base URL.
func NewClient(addr, token string, opts ...ClientOption) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitCrawl starts a crawl job.
func (c *Client) SubmitCrawl(ctx context.Context, req CrawlRequest) (AcceptedResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AcceptedResponse{}, err
	}
	var resp AcceptedResponse
	err = c.do(ctx, http.MethodPost, "/api/jobs/crawl", "application/json", bytes.NewReader(body), &resp)
	return resp, err
}

// SubmitDocument uploads a single document.
func (c *Client) SubmitDocument(ctx context.Context, file Upload, opts UploadOptions) (AcceptedResponse, error) {
	body, contentType, err := encodeUploads("file", []Upload{file}, opts, nil)
	if err != nil {
		return AcceptedResponse{}, err
	}
	var resp AcceptedResponse
	err = c.do(ctx, http.MethodPost, "/api/jobs/document", contentType, body, &resp)
	return resp, err
}

// SubmitFolder uploads files as one folder job.
func (c *Client) SubmitFolder(ctx context.Context, folderName string, files []Upload, opts UploadOptions) (AcceptedResponse, error) {
	body, contentType, err := encodeUploads("files", files, opts, map[string]string{"folder_name": folderName})
	if err != nil {
		return AcceptedResponse{}, err
	}
	var resp AcceptedResponse
	err = c.do(ctx, http.MethodPost, "/api/jobs/folder", contentType, body, &resp)
	return resp, err
}

// Cancel requests cancellation of a job.
func (c *Client) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	var resp CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", "", nil, &resp)
	return resp, err
}

// Job returns one job snapshot.
func (c *Client) Job(ctx context.Context, id string) (Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), "", nil, &resp)
	return resp.Job, err
}

// Jobs lists every retained job.
func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	var resp JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", "", nil, &resp)
	return resp.Jobs, err
}

// Events fetches events after since for job id (every job when empty). A
// positive wait long-polls until an event arrives or wait elapses.
func (c *Client) Events(ctx context.Context, id string, since uint64, wait time.Duration) (EventsResponse, error) {
	path := "/api/events"
	if id != "" {
		path = "/api/jobs/" + url.PathEscape(id) + "/events"
	}
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if wait > 0 {
		query.Set("wait", wait.String())
	}
	var resp EventsResponse
	err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), "", nil, &resp)
	if err == nil && resp.Next < since {
		resp.Next = since
	}
	return resp, err
}

// Status returns daemon diagnostics.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, "/api/status", "", nil, &resp)
	return resp, err
}

// Sources lists stored knowledge sources.
func (c *Client) Sources(ctx context.Context) ([]Source, error) {
	var resp SourceListResponse
	err := c.do(ctx, http.MethodGet, "/api/sources", "", nil, &resp)
	return resp.Sources, err
}

// DeleteSource removes a knowledge source and its chunks.
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sources/"+url.PathEscape(id), "", nil, nil)
}

// RefreshSource starts a crawl job that re-fetches a stored source.
func (c *Client) RefreshSource(ctx context.Context, id string) (AcceptedResponse, error) {
	var resp AcceptedResponse
	err := c.do(ctx, http.MethodPost, "/api/sources/"+url.PathEscape(id)+"/refresh", "", nil, &resp)
	return resp, err
}

// CodeExamples lists the code examples captured for a source.
func (c *Client) CodeExamples(ctx context.Context, id string) (CodeExampleListResponse, error) {
	var resp CodeExampleListResponse
	err := c.do(ctx, http.MethodGet, "/api/sources/"+url.PathEscape(id)+"/code-examples", "", nil, &resp)
	return resp, err
}

// Search ranks stored chunks against query.
func (c *Client) Search(ctx context.Context, query string, limit int) (SearchResponse, error) {
	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp SearchResponse
	err := c.do(ctx, http.MethodGet, "/api/search?"+values.Encode(), "", nil, &resp)
	return resp, err
}

// TestNotification asks the daemon to publish a test notification.
func (c *Client) TestNotification(ctx context.Context) (NotificationResponse, error) {
	var resp NotificationResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", "", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &Error{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var payload ErrorResponse
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
			apiErr.Hint = payload.Hint
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func encodeUploads(field string, files []Upload, opts UploadOptions, extra map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range extra {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if opts.KnowledgeType != "" {
		if err := writer.WriteField("knowledge_type", opts.KnowledgeType); err != nil {
			return nil, "", err
		}
	}
	if len(opts.Tags) > 0 {
		tags, err := json.Marshal(opts.Tags)
		if err != nil {
			return nil, "", err
		}
		if err := writer.WriteField("tags", string(tags)); err != nil {
			return nil, "", err
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Name))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
