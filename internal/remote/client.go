// Package remote is an HTTP client for the limud API. It satisfies the search
// and poller source interfaces so the CLI can work against a running server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/storage"
)

// Client is a limud API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. A client passed with WithHTTPClient
// is copied first so the caller's client keeps its own timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		hc := *client.httpClient
		hc.Timeout = d
		client.httpClient = &hc
	}
}

// WithRateLimit throttles outgoing requests to rps per second. Zero or less disables throttling.
func WithRateLimit(rps float64) Option {
	return func(client *Client) {
		if rps <= 0 {
			client.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new API client.
// baseURL is the server URL (e.g., "http://localhost:8080").
// token is sent as a bearer token when non-empty.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// wrapError wraps an error with an operation name if it's an API error.
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	apiErr, ok := err.(*Error)
	if ok {
		apiErr.Op = op
		return apiErr
	}
	return fmt.Errorf("%s: %w", op, err)
}

// buildURL joins path onto the base URL with optional query parameters.
func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// doRequest performs an HTTP request with an optional JSON body and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	fullURL, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts {"error": "..."} bodies written by the server, falling back to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// ListDocuments returns the whole catalog without transcripts.
func (c *Client) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	list, err := c.ListDocumentsPage(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

// ListDocumentsPage returns one page of the catalog. limit <= 0 returns everything from offset.
func (c *Client) ListDocumentsPage(ctx context.Context, offset, limit int) (*models.DocumentList, error) {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var list models.DocumentList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/documents", q, nil, &list); err != nil {
		return nil, wrapError(err, "ListDocuments")
	}
	return &list, nil
}

// GetDocument returns a document including its transcript.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		return nil, wrapError(err, "GetDocument")
	}
	return &doc, nil
}

// CreateDocument adds or replaces a catalog document.
func (c *Client) CreateDocument(ctx context.Context, input models.DocumentInput) (*models.Document, error) {
	var doc models.Document
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/documents", nil, input, &doc); err != nil {
		return nil, wrapError(err, "CreateDocument")
	}
	return &doc, nil
}

// Transcript fetches a document's text; ok is false while it is not available.
func (c *Client) Transcript(ctx context.Context, id string) (string, bool, error) {
	var tr models.TranscriptResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(id)+"/transcript", nil, nil, &tr)
	if err != nil {
		err = wrapError(err, "Transcript")
		if IsNotFound(err) {
			return "", false, fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		}
		return "", false, err
	}
	return tr.Transcript, tr.Available, nil
}

// Search runs a search on the server.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/search", nil, req, &resp); err != nil {
		return nil, wrapError(err, "Search")
	}
	return &resp, nil
}

// CreateJob starts a transcription job for a document.
func (c *Client) CreateJob(ctx context.Context, documentID string) (*models.Job, error) {
	var job models.Job
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/jobs", nil, models.JobInput{DocumentID: documentID}, &job); err != nil {
		return nil, wrapError(err, "CreateJob")
	}
	return &job, nil
}

// GetJob returns a job.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, nil, &job); err != nil {
		return nil, wrapError(err, "GetJob")
	}
	return &job, nil
}

// JobStatus returns the job's current status.
func (c *Client) JobStatus(ctx context.Context, id string) (*models.JobStatus, error) {
	job, err := c.GetJob(ctx, id)
	if err != nil {
		return nil, wrapError(err, "JobStatus")
	}
	return &job.Status, nil
}

// UpdateJobStatus reports progress for a job.
func (c *Client) UpdateJobStatus(ctx context.Context, id string, update models.JobStatusUpdate) (*models.Job, error) {
	var job models.Job
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/jobs/"+url.PathEscape(id)+"/status", nil, update, &job); err != nil {
		return nil, wrapError(err, "UpdateJobStatus")
	}
	return &job, nil
}

// RetryJob re-submits a failed or finished job.
func (c *Client) RetryJob(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/retry", nil, nil, nil); err != nil {
		return wrapError(err, "RetryJob")
	}
	return nil
}

// Status returns the server's catalog statistics.
func (c *Client) Status(ctx context.Context) (*storage.Stats, error) {
	var st storage.Stats
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/status", nil, nil, &st); err != nil {
		return nil, wrapError(err, "Status")
	}
	return &st, nil
}
