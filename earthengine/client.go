// Package earthengine is a small client for the Earth Engine REST API. It lists
// catalog images and renders thumbnails from serialized expressions.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
)

const DefaultBase = "https://earthengine.googleapis.com"

// Client talks to the Earth Engine REST API on behalf of a Session.
type Client struct {
	Base    string
	Session *Session

	http    *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

type Option func(*Client)

// WithRetries overrides the retry policy of the underlying transport.
func WithRetries(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

func New(s *Session, base string, opts ...Option) *Client {
	if base == "" {
		base = DefaultBase
	}
	hc := retryablehttp.NewClient()
	hc.Logger = nil
	if log.GetLevel() >= log.DebugLevel {
		hc.Logger = log.StandardLogger()
	}
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	hc.HTTPClient.Transport = &oauth2.Transport{
		Source: s.TokenSource,
		Base:   hc.HTTPClient.Transport,
	}

	c := &Client{
		Base:    strings.TrimSuffix(base, "/"),
		Session: s,
		http:    hc,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "earthengine",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Circuit breaker %q: %v -> %v", name, from, to)
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(path string) string {
	return c.Base + "/v1/" + strings.TrimPrefix(path, "/")
}

// do issues the request and returns the response for 2xx replies. Anything
// else is drained and converted to an *APIError.
func (c *Client) do(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var payload interface{}
	if body != nil {
		j, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		log.Debugf("Earth Engine %s %s: %s", method, url, string(j))
		payload = bytes.NewReader(j)
	} else {
		log.Debugf("Earth Engine %s %s", method, url)
	}
	req, err := retryablehttp.NewRequest(method, url, payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req = req.WithContext(ctx)

	res, err := c.breaker.Execute(func() (*http.Response, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode/100 != 2 {
			defer res.Body.Close()
			return nil, decodeError(res)
		}
		return res, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("earth engine unavailable: %w", err)
	}
	return res, err
}

func decodeError(res *http.Response) error {
	buf := new(strings.Builder)
	io.Copy(buf, io.LimitReader(res.Body, 64<<10))
	apiErr := &APIError{Status: res.StatusCode}
	var env errorEnvelope
	if err := json.Unmarshal([]byte(buf.String()), &env); err == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(buf.String())
	}
	return apiErr
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	res, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, url string, in, out interface{}) error {
	res, err := c.do(ctx, http.MethodPost, url, in)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return json.NewDecoder(res.Body).Decode(out)
}
