// Package agents is a typed REST client for the cloud agent service: agent
// definitions, threads, messages, runs and tool approvals. It only moves
// requests and responses; conversation logic lives in internal/orchestrator.
package agents

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/docentlabs/docent/internal/log"
)

// APIVersion is the service API version sent with every request.
const APIVersion = "2025-05-01"

// requestTimeout bounds a single HTTP exchange. Polling loops issue many
// short requests, so this is per-request, not per-conversation.
const requestTimeout = 60 * time.Second

// API is the surface the orchestrator consumes. *Client implements it; tests
// substitute scripted fakes.
type API interface {
	CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	CreateThread(ctx context.Context) (*Thread, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	CreateMessage(ctx context.Context, threadID string, req CreateMessageRequest) (*Message, error)
	ListMessages(ctx context.Context, threadID string, opts ListMessagesOptions) (*MessageList, error)
	CreateRun(ctx context.Context, threadID string, req CreateRunRequest) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolApprovals(ctx context.Context, threadID, runID string, req SubmitToolApprovalsRequest) (*Run, error)
}

// Client talks to the agent service over HTTPS with bearer authentication.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

var _ API = (*Client)(nil)

// New creates a service client. endpoint is the base URL of the agent
// service project, without a trailing slash.
func New(endpoint, apiKey string, logger log.Logger) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("agent service endpoint is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("agent service API key is required")
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("component", "agents"),
	}, nil
}

// CreateAgent registers a new agent definition with the service.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	var agent Agent
	if err := c.makeRequest(ctx, http.MethodPost, c.url("/assistants", nil), req, &agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	c.logger.Debug("agent created", "agent_id", agent.ID, "model", agent.Model)
	return &agent, nil
}

// DeleteAgent removes an agent definition from the service.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	var status DeletionStatus
	if err := c.makeRequest(ctx, http.MethodDelete, c.url("/assistants/"+url.PathEscape(agentID), nil), nil, &status); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// CreateThread starts an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	if err := c.makeRequest(ctx, http.MethodPost, c.url("/threads", nil), struct{}{}, &thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	c.logger.Debug("thread created", "thread_id", thread.ID)
	return &thread, nil
}

// GetThread fetches a thread by ID.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var thread Thread
	if err := c.makeRequest(ctx, http.MethodGet, c.url("/threads/"+url.PathEscape(threadID), nil), nil, &thread); err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &thread, nil
}

// DeleteThread removes a thread and its transcript from the service.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	var status DeletionStatus
	if err := c.makeRequest(ctx, http.MethodDelete, c.url("/threads/"+url.PathEscape(threadID), nil), nil, &status); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, req CreateMessageRequest) (*Message, error) {
	var msg Message
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if err := c.makeRequest(ctx, http.MethodPost, c.url(path, nil), req, &msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &msg, nil
}

// ListMessages reads a thread transcript.
func (c *Client) ListMessages(ctx context.Context, threadID string, opts ListMessagesOptions) (*MessageList, error) {
	query := url.Values{}
	if opts.Order != "" {
		query.Set("order", opts.Order)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var list MessageList
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if err := c.makeRequest(ctx, http.MethodGet, c.url(path, query), nil, &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &list, nil
}

// CreateRun starts an agent execution over a thread.
func (c *Client) CreateRun(ctx context.Context, threadID string, req CreateRunRequest) (*Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs"
	if err := c.makeRequest(ctx, http.MethodPost, c.url(path, nil), req, &run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	c.logger.Debug("run created", "thread_id", threadID, "run_id", run.ID)
	return &run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.makeRequest(ctx, http.MethodGet, c.url(path, nil), nil, &run); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// SubmitToolApprovals answers a requires_action run with verdicts for every
// pending tool call. The service resumes the run once all calls are decided.
func (c *Client) SubmitToolApprovals(ctx context.Context, threadID, runID string, req SubmitToolApprovalsRequest) (*Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID) + "/submit_tool_outputs"
	if err := c.makeRequest(ctx, http.MethodPost, c.url(path, nil), req, &run); err != nil {
		return nil, fmt.Errorf("submit tool approvals: %w", err)
	}
	c.logger.Debug("tool approvals submitted",
		"thread_id", threadID,
		"run_id", runID,
		"approval_count", len(req.ToolApprovals))
	return &run, nil
}

// url joins the endpoint, a path and query parameters, always appending the
// service api-version.
func (c *Client) url(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", APIVersion)
	return c.endpoint + path + "?" + query.Encode()
}

// makeRequest performs one HTTP exchange: marshal the body, send with auth
// headers, check the status, unmarshal the result.
func (c *Client) makeRequest(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// apiError turns a non-2xx response into an *APIError, using the service's
// error envelope when the body parses and the raw body when it does not.
func (c *Client) apiError(statusCode int, body []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
