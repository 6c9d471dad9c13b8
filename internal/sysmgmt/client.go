// Package sysmgmt is the HTTP client for the Systems Management job engine.
// A job is submitted as one unit carrying its function sequence; the client
// then polls the job state until it reaches a terminal state.
package sysmgmt

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
	jobsEndpoint       = "/nisysmgmt/v1/jobs"
	cancelJobsEndpoint = "/nisysmgmt/v1/cancel-jobs"

	apiKeyHeader = "x-ni-api-key"

	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Job states reported by the service.
const (
	stateQueued     = "QUEUED"
	stateDispatched = "DISPATCHED"
	stateSucceeded  = "SUCCEEDED"
	stateFailed     = "FAILED"
	stateCanceled   = "CANCELED"
)

// Config configures the Systems Management client.
type Config struct {
	BaseURL        string        // Base URL of the service, no trailing slash
	APIKey         string        // Optional API key sent with every request
	PollInterval   time.Duration // Interval between job state polls
	RequestTimeout time.Duration // Per-request deadline
}

// Client talks to the Systems Management jobs API. It implements
// scheduler.JobEngine.
type Client struct {
	config Config
	client *fasthttp.Client
}

var _ scheduler.JobEngine = (*Client)(nil)

// NewClient creates a Systems Management client.
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

// Submit posts the job and blocks until it reaches a terminal state. The
// function sequence and per-function arguments travel in a single job body;
// ctx cancellation interrupts the wait between polls.
func (c *Client) Submit(ctx context.Context, systemID string, job request.JobExecution) error {
	body := jobBody(systemID, job)

	payload, err := oj.Marshal(body)
	if err != nil {
		return NewAPIError(jobsEndpoint, 0, "failed to encode job", err)
	}

	logger.Debug("submitting job %s to system %s (%d functions)", job.ID, systemID, len(job.Calls))

	if _, err := c.post(jobsEndpoint, payload); err != nil {
		return err
	}

	return c.awaitJob(ctx, job.ID)
}

// Cancel asks the service to cancel an outstanding job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	payload, err := oj.Marshal(map[string]any{"jids": []string{jobID}})
	if err != nil {
		return NewAPIError(cancelJobsEndpoint, 0, "failed to encode cancellation", err)
	}

	logger.Debug("cancelling job %s", jobID)

	_, err = c.post(cancelJobsEndpoint, payload)
	return err
}

// jobBody builds the wire shape of a job submission. Functions, positional
// arguments and keyword arguments are parallel arrays indexed by function.
func jobBody(systemID string, job request.JobExecution) map[string]any {
	fun := make([]string, len(job.Calls))
	arg := make([][]any, len(job.Calls))
	kwarg := make([]map[string]any, len(job.Calls))

	for i, call := range job.Calls {
		fun[i] = call.Function

		arg[i] = make([]any, len(call.Positional))
		for j, v := range call.Positional {
			arg[i][j] = v.ToAny()
		}

		if call.Keywords != nil {
			kw := make(map[string]any, len(call.Keywords))
			for k, v := range call.Keywords {
				kw[k] = v.ToAny()
			}
			kwarg[i] = kw
		}
	}

	return map[string]any{
		"jid":   job.ID,
		"tgt":   systemID,
		"fun":   fun,
		"arg":   arg,
		"kwarg": kwarg,
	}
}

// awaitJob polls the job state until it is terminal.
func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		state, err := c.jobState(jobID)
		if err != nil {
			return err
		}

		switch state {
		case stateSucceeded:
			return nil
		case stateFailed:
			return NewAPIError(jobsEndpoint, 0, fmt.Sprintf("job %s failed on the target system", jobID), nil)
		case stateCanceled:
			return NewAPIError(jobsEndpoint, 0, fmt.Sprintf("job %s was cancelled", jobID), nil)
		case stateQueued, stateDispatched, "":
			// keep polling
		default:
			logger.Warn("job %s reported unknown state %q", jobID, state)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// jobState fetches the current state of a job.
func (c *Client) jobState(jobID string) (string, error) {
	body, err := c.get(jobsEndpoint + "?jid=" + jobID)
	if err != nil {
		return "", err
	}

	parsed, err := oj.Parse(body)
	if err != nil {
		return "", NewAPIError(jobsEndpoint, 0, "failed to decode job state", err)
	}

	// The service answers a jid query with a one-element list.
	jobs, ok := parsed.([]any)
	if !ok || len(jobs) == 0 {
		return "", NewAPIError(jobsEndpoint, 0, fmt.Sprintf("job %s not found", jobID), nil)
	}
	jobObj, ok := jobs[0].(map[string]any)
	if !ok {
		return "", NewAPIError(jobsEndpoint, 0, "unexpected job state shape", nil)
	}
	state, _ := jobObj["state"].(string)
	return state, nil
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

	// resp.Body() references an internal buffer, copy before release.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
