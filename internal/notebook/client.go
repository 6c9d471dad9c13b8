// Package notebook is the HTTP client for the notebook execution engine.
package notebook

import (
	"context"
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"

	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/internal/scheduler"
	"testops/testplan-engine/pkg/logger"
)

const (
	executionsEndpoint = "/ninbexec/v2/executions"

	apiKeyHeader = "x-ni-api-key"

	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Execution statuses reported by the service.
const (
	statusQueued     = "QUEUED"
	statusInProgress = "IN_PROGRESS"
	statusSucceeded  = "SUCCEEDED"
	statusFailed     = "FAILED"
	statusCanceled   = "CANCELED"
)

// Config configures the notebook execution client.
type Config struct {
	BaseURL        string        // Base URL of the service, no trailing slash
	APIKey         string        // Optional API key sent with every request
	PollInterval   time.Duration // Interval between status polls
	RequestTimeout time.Duration // Per-request deadline
}

// Client talks to the notebook executions API. It implements
// scheduler.NotebookEngine.
type Client struct {
	config Config
	client *fasthttp.Client
}

var _ scheduler.NotebookEngine = (*Client)(nil)

// NewClient creates a notebook execution client.
func NewClient(config Config) *Client {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}

	return &Client{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         config.RequestTimeout,
			WriteTimeout:        config.RequestTimeout,
		},
	}
}

// Run starts the notebook and blocks until the execution reaches a terminal
// status. The test plan id and target system travel as implicit parameters
// alongside the action's resolved arguments.
func (c *Client) Run(ctx context.Context, nb request.NotebookExecution, testPlanID, systemID string) error {
	args := make([]any, len(nb.Arguments))
	for i, v := range nb.Arguments {
		args[i] = v.ToAny()
	}

	body := map[string]any{
		"notebookId": nb.NotebookID,
		"parameters": map[string]any{
			"testPlanId": testPlanID,
			"systemId":   systemID,
			"arguments":  args,
		},
	}

	payload, err := oj.Marshal([]any{body})
	if err != nil {
		return NewAPIError(executionsEndpoint, 0, "failed to encode execution", err)
	}

	logger.Debug("starting notebook %s for test plan %s", nb.NotebookID, testPlanID)

	respBody, err := c.post(executionsEndpoint, payload)
	if err != nil {
		return err
	}

	executionID, err := extractExecutionID(respBody)
	if err != nil {
		return err
	}

	return c.awaitExecution(ctx, executionID)
}

// extractExecutionID pulls the execution id out of the creation response,
// which is a one-element list mirroring the request.
func extractExecutionID(body []byte) (string, error) {
	parsed, err := oj.Parse(body)
	if err != nil {
		return "", NewAPIError(executionsEndpoint, 0, "failed to decode execution response", err)
	}

	executions, ok := parsed.([]any)
	if !ok || len(executions) == 0 {
		return "", NewAPIError(executionsEndpoint, 0, "unexpected execution response shape", nil)
	}
	execObj, ok := executions[0].(map[string]any)
	if !ok {
		return "", NewAPIError(executionsEndpoint, 0, "unexpected execution response shape", nil)
	}
	id, _ := execObj["id"].(string)
	if id == "" {
		return "", NewAPIError(executionsEndpoint, 0, "execution response carries no id", nil)
	}
	return id, nil
}

// awaitExecution polls the execution status until it is terminal.
func (c *Client) awaitExecution(ctx context.Context, executionID string) error {
	endpoint := executionsEndpoint + "/" + executionID

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		status, errMsg, err := c.executionStatus(endpoint)
		if err != nil {
			return err
		}

		switch status {
		case statusSucceeded:
			return nil
		case statusFailed:
			msg := fmt.Sprintf("notebook execution %s failed", executionID)
			if errMsg != "" {
				msg = fmt.Sprintf("%s: %s", msg, errMsg)
			}
			return NewAPIError(endpoint, 0, msg, nil)
		case statusCanceled:
			return NewAPIError(endpoint, 0, fmt.Sprintf("notebook execution %s was cancelled", executionID), nil)
		case statusQueued, statusInProgress, "":
			// keep polling
		default:
			logger.Warn("notebook execution %s reported unknown status %q", executionID, status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// executionStatus fetches the current status of an execution and the error
// message the service attached to it, if any.
func (c *Client) executionStatus(endpoint string) (string, string, error) {
	body, err := c.get(endpoint)
	if err != nil {
		return "", "", err
	}

	parsed, err := oj.Parse(body)
	if err != nil {
		return "", "", NewAPIError(endpoint, 0, "failed to decode execution status", err)
	}
	execObj, ok := parsed.(map[string]any)
	if !ok {
		return "", "", NewAPIError(endpoint, 0, "unexpected execution status shape", nil)
	}

	status, _ := execObj["status"].(string)
	errMsg, _ := execObj["exception"].(string)
	return status, errMsg, nil
}

func (c *Client) post(endpoint string, payload []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.config.BaseURL + endpoint)
	req.Header.SetContentType("application/json")
	if c.config.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.config.APIKey)
	}
	req.SetBody(payload)

	return c.do(endpoint, req, resp)
}

func (c *Client) get(endpoint string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.config.BaseURL + endpoint)
	if c.config.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.config.APIKey)
	}

	return c.do(endpoint, req, resp)
}

func (c *Client) do(endpoint string, req *fasthttp.Request, resp *fasthttp.Response) ([]byte, error) {
	deadline := time.Now().Add(c.config.RequestTimeout)
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		if err == fasthttp.ErrTimeout {
			return nil, NewAPIError(endpoint, 0, fmt.Sprintf("request timed out after %s", c.config.RequestTimeout), err)
		}
		return nil, NewAPIError(endpoint, 0, "request failed", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, NewAPIError(endpoint, status, string(resp.Body()), nil)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
