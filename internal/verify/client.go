// Package verify calls the remote verification service that decides
// whether a phone+email pair is accepted and whether it supersedes a prior
// record.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Decision is the service's answer for one pair.
type Decision struct {
	Verified bool
	// IsReplacement means the email supersedes the email previously
	// verified for this phone; the store demotes the old row before
	// inserting the new one.
	IsReplacement bool
}

// ServiceError is returned for transport failures, non-2xx responses, and
// malformed bodies. Callers treat the pair as unverifiable for this attempt
// and move on; nothing is retried here.
type ServiceError struct {
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("verification service: status %d", e.Status)
	}
	return fmt.Sprintf("verification service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client talks to the verification endpoint. One POST per Verify call, no
// internal retry.
type Client struct {
	url    string
	key    string
	http   *http.Client
	logger *zap.Logger
}

// New creates a client for the given endpoint and API key.
func New(url, key string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		key:    key,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type verifyRequest struct {
	Key   string `json:"key"`
	Cell  string `json:"cell"`
	Email string `json:"email"`
}

type verifyResponse struct {
	IsReplacement string `json:"is_replacement"`
}

// Verify submits the pair and interprets the response.
func (c *Client) Verify(ctx context.Context, phone, email string) (Decision, error) {
	body, err := json.Marshal(verifyRequest{Key: c.key, Cell: phone, Email: email})
	if err != nil {
		return Decision{}, &ServiceError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, &ServiceError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Decision{}, &ServiceError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Decision{}, &ServiceError{Status: resp.StatusCode}
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return Decision{}, &ServiceError{Err: fmt.Errorf("decode response: %w", err)}
	}

	d := Decision{
		Verified:      true,
		IsReplacement: vr.IsReplacement == "true",
	}
	c.logger.Debug("pair verified",
		zap.String("phone", phone),
		zap.Bool("is_replacement", d.IsReplacement))
	return d, nil
}
