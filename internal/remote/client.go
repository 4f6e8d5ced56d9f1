package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eduxora/stageflow/pkg/api"
)

const (
	nextStagePath  = "/workflowrequest/next-stage/"
	processingPath = "/workflowrequest/get-workflow-request-for-processing"
	completePath   = "/workflowrequest/stage/complete"

	// maxErrorBody bounds how much of a failed response is kept in StatusError.
	maxErrorBody = 4 << 10
)

// ErrRequestNotFound is returned when the processing endpoint answers
// without a request for the given id.
var ErrRequestNotFound = errors.New("workflow request not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client talks to the EduXora workflow-request REST API.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a Client for the API rooted at baseURL. The default HTTP
// client propagates trace context and records a span per call.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRequest returns the request with its stage-response history and the
// nested workflow definition.
func (c *Client) FetchRequest(ctx context.Context, requestID string) (*api.WorkflowRequest, error) {
	body, err := c.do(ctx, http.MethodPost, processingPath, map[string]string{"id": requestID})
	if err != nil {
		return nil, err
	}
	wr, err := decodeProcessing(body, requestID)
	if err != nil {
		return nil, err
	}
	return wr.toDomain(), nil
}

// FetchCurrentStage returns the next-stage pointer. A request without a
// pending stage yields the zero CurrentStage.
func (c *Client) FetchCurrentStage(ctx context.Context, requestID string) (*api.CurrentStage, error) {
	body, err := c.do(ctx, http.MethodGet, nextStagePath+url.PathEscape(requestID), nil)
	if err != nil {
		return nil, err
	}
	var ns wireNextStage
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &ns); err != nil {
			return nil, fmt.Errorf("decode next stage: %w", err)
		}
	}
	return ns.CurrentStage.toDomain(), nil
}

// CompleteStage posts a stage decision. Only success or failure is
// reported; the response body is ignored.
func (c *Client) CompleteStage(ctx context.Context, comp api.Completion) error {
	_, err := c.do(ctx, http.MethodPost, completePath, wireCompletion{
		StageID:        comp.StageID,
		Action:         comp.Action,
		Comment:        comp.Comment,
		FieldResponses: comp.FieldResponses,
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	return io.ReadAll(resp.Body)
}

// decodeProcessing accepts the bare request object or a {"data": ...}
// envelope holding an object or a list of requests.
func decodeProcessing(body []byte, requestID string) (wireRequest, error) {
	var wr wireRequest
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return wr, ErrRequestNotFound
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if body[0] == '{' {
		if err := json.Unmarshal(body, &env); err != nil {
			return wr, fmt.Errorf("decode workflow request: %w", err)
		}
	}
	if len(env.Data) == 0 {
		if err := json.Unmarshal(body, &wr); err != nil {
			return wr, fmt.Errorf("decode workflow request: %w", err)
		}
		if wr.ID == "" {
			return wr, ErrRequestNotFound
		}
		return wr, nil
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && data[0] == '[' {
		var list []wireRequest
		if err := json.Unmarshal(data, &list); err != nil {
			return wr, fmt.Errorf("decode workflow request list: %w", err)
		}
		for _, item := range list {
			if string(item.ID) == requestID {
				return item, nil
			}
		}
		return wr, ErrRequestNotFound
	}
	if err := json.Unmarshal(data, &wr); err != nil {
		return wr, fmt.Errorf("decode workflow request: %w", err)
	}
	if wr.ID == "" {
		return wr, ErrRequestNotFound
	}
	return wr, nil
}
