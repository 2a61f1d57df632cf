package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// userProfileQuery asks for ranking, reputation and the per-difficulty
// accepted-submission counts in a single request.
const userProfileQuery = `
query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile {
      ranking
      reputation
    }
    submitStats {
      acSubmissionNum {
        difficulty
        count
      }
    }
  }
}`

// Linear backoff applied before each retry, never before the first attempt.
const (
	backoffBase = 1 * time.Second
	backoffStep = 500 * time.Millisecond
)

// Failure kinds for FetchError.
const (
	fetchKindTimeout    = "timeout"
	fetchKindConnection = "connection"
	fetchKindHTTP       = "http"
)

// FetchError is a terminal transport-level failure from the upstream
// GraphQL endpoint. Status is set only for the "http" kind.
type FetchError struct {
	Kind   string
	Status int
	err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case fetchKindHTTP:
		return fmt.Sprintf("upstream returned status %d", e.Status)
	case fetchKindTimeout:
		return "upstream request timed out"
	default:
		return fmt.Sprintf("upstream connection failed: %v", e.err)
	}
}

func (e *FetchError) Unwrap() error { return e.err }

// retryable reports whether another attempt may succeed: rate limiting
// (429), client-closed-request (499), server errors and transport failures
// are worth retrying; any other HTTP status is terminal.
func (e *FetchError) retryable() bool {
	switch e.Kind {
	case fetchKindTimeout, fetchKindConnection:
		return true
	case fetchKindHTTP:
		return e.Status == 429 || e.Status == 499 || e.Status >= 500
	}
	return false
}

type graphqlRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

// leetClient issues the user-profile query against the LeetCode GraphQL
// endpoint with bounded retries. It is stateless across calls; the sleep
// func is swappable so tests can observe backoff without waiting.
type leetClient struct {
	endpoint   string
	http       *http.Client
	maxRetries int
	sleep      func(time.Duration)
}

func newLeetClient(endpoint string, timeout time.Duration, maxRetries int) *leetClient {
	return &leetClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// fetchProfile performs up to maxRetries+1 attempts. Non-retryable failures
// return immediately; exhaustion returns the last attempt's error.
func (c *leetClient) fetchProfile(ctx context.Context, username string) (*rawProfile, error) {
	body, err := json.Marshal(graphqlRequest{
		Query:     userProfileQuery,
		Variables: map[string]string{"username": username},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	var last *FetchError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(backoffBase + time.Duration(attempt-1)*backoffStep)
		}

		raw, ferr := c.doAttempt(ctx, body)
		if ferr == nil {
			return raw, nil
		}
		if !ferr.retryable() {
			return nil, ferr
		}
		last = ferr
	}
	return nil, last
}

func (c *leetClient) doAttempt(ctx context.Context, body []byte) (*rawProfile, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: fetchKindConnection, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://leetcode.com")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeetStats/1.0)")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: fetchKindHTTP, Status: resp.StatusCode}
	}

	var raw rawProfile
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &FetchError{Kind: fetchKindConnection, err: fmt.Errorf("decode upstream response: %w", err)}
	}
	return &raw, nil
}

func classifyTransportError(err error) *FetchError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: fetchKindTimeout, err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: fetchKindTimeout, err: err}
	}
	return &FetchError{Kind: fetchKindConnection, err: err}
}
