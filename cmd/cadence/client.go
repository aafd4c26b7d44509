package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cadence/internal/api"
)

// errJobNotRunning reports a cancel for a job that already finished or never
// existed. Callers treat it as information.
var errJobNotRunning = errors.New("job not running")

// apiClient talks to the cadenced HTTP API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
	stream  *http.Client
}

func newAPIClient(addr, token string) *apiClient {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 2 * time.Minute},
		// Import streams stay open until the job ends.
		stream: &http.Client{},
	}
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return c.wrapDialError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError is a non-2xx response from the daemon.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func decodeError(resp *http.Response) error {
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &apiError{Status: resp.StatusCode, Message: body.Error}
}

func (c *apiClient) wrapDialError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `cadenced`", c.baseURL)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func (c *apiClient) Status(ctx context.Context) (*api.Status, error) {
	var out api.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Preview(ctx context.Context, req api.PreviewRequest) (*api.Report, error) {
	var out api.Report
	if err := c.do(ctx, http.MethodPost, "/api/match/preview", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Commit(ctx context.Context, req api.CommitRequest) (*api.CommitReport, error) {
	var out api.CommitReport
	if err := c.do(ctx, http.MethodPost, "/api/match/commit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) CancelImport(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodPost, "/api/import/"+url.PathEscape(id)+"/cancel", nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return errJobNotRunning
	}
	return err
}

func (c *apiClient) Jobs(ctx context.Context, owner string, limit int) (*api.JobsResponse, error) {
	query := url.Values{}
	if owner != "" {
		query.Set("owner", owner)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/import/jobs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.JobsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Conflicts(ctx context.Context, owner string) ([]api.Conflict, error) {
	path := "/api/conflicts"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var out api.ConflictsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Conflicts, nil
}

func (c *apiClient) Resolve(ctx context.Context, id, resolution string) (*api.Conflict, error) {
	var out api.Conflict
	path := "/api/conflicts/" + url.PathEscape(id) + "/resolve"
	if err := c.do(ctx, http.MethodPost, path, api.ResolveRequest{Resolution: resolution}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) ClaimStudent(ctx context.Context, req api.ClaimRequest) (*api.Student, error) {
	var out api.Student
	if err := c.do(ctx, http.MethodPost, "/api/students/claim", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Import starts a job and calls onEvent for every streamed event until the
// server closes the stream. It returns the job id and the terminal event.
func (c *apiClient) Import(ctx context.Context, req api.ImportRequest, onEvent func(api.ImportEvent)) (string, *api.ImportEvent, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/import", req)
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return "", nil, c.wrapDialError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", nil, decodeError(resp)
	}

	jobID := resp.Header.Get("X-Job-ID")
	var last *api.ImportEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev api.ImportEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return jobID, last, fmt.Errorf("decode import event: %w", err)
		}
		last = &ev
		if onEvent != nil {
			onEvent(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return jobID, last, fmt.Errorf("read import stream: %w", err)
	}
	return jobID, last, nil
}
