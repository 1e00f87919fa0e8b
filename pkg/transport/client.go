/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/trustbloc/edge-core/pkg/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

var logger = log.New("siop-agent/transport")

const (
	defaultRetries  = 3
	defaultInterval = 500 * time.Millisecond
	formContentType = "application/x-www-form-urlencoded"
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Opt configures the client.
type Opt func(c *Client)

// WithTLSConfig sets the TLS configuration of the default http client.
func WithTLSConfig(tlsConfig *tls.Config) Opt {
	return func(c *Client) {
		c.httpClient = newHTTPClient(tlsConfig)
	}
}

// WithHTTPClient overrides the http client.
func WithHTTPClient(client httpClient) Opt {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetry sets how often a failed request fetch is retried and the pause between attempts.
func WithRetry(retries uint64, interval time.Duration) Opt {
	return func(c *Client) {
		c.retries = retries
		c.interval = interval
	}
}

// Client fetches authentication requests from relying parties and posts responses back to them.
type Client struct {
	httpClient httpClient
	retries    uint64
	interval   time.Duration
}

// New returns a client.
func New(opts ...Opt) *Client {
	c := &Client{
		httpClient: newHTTPClient(nil),
		retries:    defaultRetries,
		interval:   defaultInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newHTTPClient(tlsConfig *tls.Config) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(&http.Transport{TLSClientConfig: tlsConfig}),
	}
}

// FetchRequest gets the authentication request published at requestURL. Only a 200 response is accepted.
// Network failures and server errors are retried.
func (c *Client) FetchRequest(ctx context.Context, requestURL string) ([]byte, error) {
	var (
		data     []byte
		rejected error
	)

	err := backoff.RetryNotify(
		func() error {
			var status int

			var err error

			data, status, err = c.get(ctx, requestURL)
			if err != nil {
				return err
			}

			if status >= http.StatusInternalServerError {
				return fmt.Errorf("could not fetch the request url: %d %s", status, string(data))
			}

			if status != http.StatusOK {
				rejected = fmt.Errorf("could not fetch the request url: %d %s", status, reason(status, data))
			}

			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), c.retries), ctx),
		func(err error, d time.Duration) {
			logger.Warnf("fetch %s failed, retrying in %s : %s", requestURL, d, err)
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: %s", siop.ErrTransport, err.Error())
	}

	if rejected != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrTransport, rejected.Error())
	}

	return data, nil
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request : %w", err)
	}

	return c.send(req)
}

// Deliver posts the response form to destination once. Any 2xx status is a success. Other statuses fail
// with *siop.ResponseRejectedError and network failures with siop.ErrTransport.
func (c *Client) Deliver(ctx context.Context, destination string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: create request : %s", siop.ErrTransport, err.Error())
	}

	req.Header.Set("Content-Type", formContentType)

	body, status, err := c.send(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %s", siop.ErrTransport, err.Error())
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &siop.ResponseRejectedError{StatusCode: status, Message: reason(status, body)}
	}

	logger.Debugf("response delivered to %s : %d", destination, status)

	return nil
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request : %w", err)
	}

	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			logger.Warnf("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warnf("failed to read response body for status: %d", resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

// reason prefers the response body over the generic status text.
func reason(status int, body []byte) string {
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}

	if text := http.StatusText(status); text != "" {
		return text
	}

	return strconv.Itoa(status)
}
