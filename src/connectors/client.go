// Package connectors holds the HTTP adapters for the Planner and the Ledger.
//
// Every physical call gets a fresh correlation id and leaves one ExternalCallLog row
// behind, persisted before the adapter returns.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"ordersaga/src/failure"
	"ordersaga/src/model"
)

const CorrelationHeader = "X-Correlation-ID"

// CallSink persists call log rows.
type CallSink interface {
	Create(ctx context.Context, row *model.ExternalCallLog) error
	MarkRetryable(ctx context.Context, id uint) error
}

// Call carries what a saga step knows about the call it is about to make. It replaces
// any ambient per-request state: linkage, the retry policy and where to log.
type Call struct {
	OrderID        *uint
	OrderNo        string
	Feature        string
	ItemNos        []string
	RetryOnFailure bool
	ReplayOf       *uint
	Sink           CallSink
	Log            *logger.Entry
}

func (c Call) entry() *logger.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logger.NewEntry(logger.StandardLogger())
}

// Envelope is the body of every outbound request.
type Envelope struct {
	RequestID string          `json:"requestId"`
	Sender    string          `json:"sender"`
	Payload   json.RawMessage `json:"payload"`
}

// Response is the raw result of the last physical attempt.
type Response struct {
	CorrelationID string
	StatusCode    int
	Body          []byte
	Latency       time.Duration
}

// Client is the shared transport of one external system.
type Client struct {
	target   string
	baseURL  string
	paths    map[string]string
	sender   string
	attempts int
	wait     time.Duration
	http     *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func newClient(target, baseURL string, paths map[string]string, cfg Config) *Client {
	attempts := cfg.ExternalRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	// Attempts are driven by Send so that each one gets its own id and log row.
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.ExternalTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		target:   target,
		baseURL:  strings.TrimRight(baseURL, "/"),
		paths:    paths,
		sender:   cfg.ExternalSender,
		attempts: attempts,
		wait:     cfg.ExternalRetryWait,
		http:     httpClient,
	}
}

// URL resolves an endpoint name to the absolute URL recorded on call logs.
func (c *Client) URL(endpoint string) string {
	return c.baseURL + c.paths[endpoint]
}

// Send posts payload to endpoint. The returned row is the log of the last attempt.
func (c *Client) Send(ctx context.Context, call Call, endpoint string, payload interface{}) (*Response, *model.ExternalCallLog, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, failure.NewValidation(c.op(endpoint), "", fmt.Sprintf("encode payload: %v", err))
	}
	template, err := json.Marshal(Envelope{Sender: c.sender, Payload: raw})
	if err != nil {
		return nil, nil, failure.NewValidation(c.op(endpoint), "", fmt.Sprintf("encode envelope: %v", err))
	}
	return c.post(ctx, call, endpoint, c.URL(endpoint), template)
}

// ReplaceCorrelationID returns body with only the envelope requestId swapped. The
// payload bytes are carried over untouched.
func ReplaceCorrelationID(body []byte, correlationID string) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("decode envelope: missing payload")
	}
	env.RequestID = correlationID
	return json.Marshal(env)
}

func (c *Client) op(endpoint string) string {
	return c.target + "." + endpoint
}

// post sends template, an encoded Envelope, once per attempt under a fresh requestId.
func (c *Client) post(ctx context.Context, call Call, endpoint, url string, template []byte) (*Response, *model.ExternalCallLog, error) {
	op := c.op(endpoint)
	log := call.entry().WithFields(map[string]interface{}{
		"target":   c.target,
		"endpoint": endpoint,
		"order_no": call.OrderNo,
		"feature":  call.Feature,
	})

	var (
		resp    *Response
		row     *model.ExternalCallLog
		lastErr error
	)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		correlationID := uuid.NewString()
		body, err := ReplaceCorrelationID(template, correlationID)
		if err != nil {
			return nil, nil, failure.NewValidation(op, "", err.Error())
		}

		start := time.Now()
		r, err := c.http.R().
			SetContext(ctx).
			SetHeader(CorrelationHeader, correlationID).
			SetBody(body).
			Post(url)
		latency := time.Since(start)

		row = c.newRow(call, endpoint, url, correlationID, body, latency)
		retryable := isRetryableResp(r, err)
		resp = nil

		switch {
		case err != nil:
			row.Exception = err.Error()
			lastErr = failure.NewTransport(op, err)
		case r.IsError():
			row.HTTPStatus = r.StatusCode()
			row.ResponseBody = string(r.Body())
			row.Exception = fmt.Sprintf("HTTP %d", r.StatusCode())
			if retryable {
				lastErr = failure.NewTransport(op, fmt.Errorf("HTTP %d: %s", r.StatusCode(), r.String()))
			} else {
				lastErr = failure.NewExternal(op, "", fmt.Sprintf("HTTP%d", r.StatusCode()), r.String())
			}
		default:
			row.HTTPStatus = r.StatusCode()
			row.ResponseBody = string(r.Body())
			resp = &Response{
				CorrelationID: correlationID,
				StatusCode:    r.StatusCode(),
				Body:          r.Body(),
				Latency:       latency,
			}
			lastErr = nil
		}

		final := lastErr == nil || !retryable || attempt == c.attempts || ctx.Err() != nil
		if lastErr != nil && final && call.RetryOnFailure {
			row.Retry = true
		}
		c.record(ctx, call, row, log)

		if final {
			break
		}

		log.WithFields(map[string]interface{}{
			"correlation_id": correlationID,
			"attempt":        attempt,
		}).WithError(lastErr).Warn("external call failed, retrying")

		select {
		case <-ctx.Done():
			return resp, row, lastErr
		case <-time.After(c.wait * time.Duration(attempt)):
		}
	}

	return resp, row, lastErr
}

func (c *Client) newRow(call Call, endpoint, url, correlationID string, body []byte, latency time.Duration) *model.ExternalCallLog {
	return &model.ExternalCallLog{
		Target:        c.target,
		Endpoint:      endpoint,
		URL:           url,
		CorrelationID: correlationID,
		RequestBody:   string(body),
		LatencyMs:     latency.Milliseconds(),
		OrderID:       call.OrderID,
		OrderNo:       call.OrderNo,
		Feature:       call.Feature,
		ItemNos:       strings.Join(call.ItemNos, ","),
		ReplayOf:      call.ReplayOf,
	}
}

// record never fails the business call; a lost row is only logged.
func (c *Client) record(ctx context.Context, call Call, row *model.ExternalCallLog, log *logger.Entry) {
	if call.Sink == nil {
		return
	}
	if err := call.Sink.Create(context.WithoutCancel(ctx), row); err != nil {
		log.WithFields(map[string]interface{}{
			"correlation_id": row.CorrelationID,
		}).WithError(err).Error("failed to persist external call log")
	}
}

// markRetryable flags a row whose call went through but was rejected by the remote side.
func (c *Client) markRetryable(ctx context.Context, call Call, row *model.ExternalCallLog) {
	if row == nil || row.Retry || !call.RetryOnFailure {
		return
	}
	row.Retry = true
	if call.Sink == nil || row.ID == 0 {
		return
	}
	if err := call.Sink.MarkRetryable(context.WithoutCancel(ctx), row.ID); err != nil {
		call.entry().WithFields(map[string]interface{}{
			"correlation_id": row.CorrelationID,
		}).WithError(err).Error("failed to flag external call for retry")
	}
}

func decode(op string, resp *Response, out interface{}) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return failure.NewExternal(op, "", "DECODE", fmt.Sprintf("malformed response: %v", err))
	}
	return nil
}
