// Package terminal talks to the on-premises accounting terminal.
//
// The terminal exposes a single HTTP endpoint that accepts an XML document in
// a POST body and answers with an XML document. This package treats both as
// opaque strings; it knows nothing about the document grammar.
//
// Two operations are provided:
//   - Reachable: a bounded TCP dial used to gate delivery attempts
//   - Send: one POST of a payload, classified into typed errors
//
// Every network operation carries a timeout.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultProbeTimeout bounds a reachability check.
	DefaultProbeTimeout = 3 * time.Second

	// DefaultSendTimeout bounds a single send, including reading the response.
	DefaultSendTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a terminal response is read.
	maxResponseBytes = 32 << 20
)

// AckFunc inspects a response body and returns an error if the terminal did
// not accept the document.
type AckFunc func(body string) error

// NonEmptyAck accepts any response with a non-blank body.
func NonEmptyAck(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("empty response")
	}
	return nil
}

// Dialer opens the probe connection. Satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client sends documents to one terminal endpoint.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	endpoint     string
	target       *url.URL
	parseErr     error
	httpClient   *http.Client
	dialer       Dialer
	probeTimeout time.Duration
	sendTimeout  time.Duration
	ack          AckFunc
}

// Option configures a Client.
type Option func(*Client)

// WithProbeTimeout sets the reachability probe timeout.
//
// Default: 3s (DefaultProbeTimeout)
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = d
	}
}

// WithSendTimeout sets the per-send timeout.
//
// Default: 30s (DefaultSendTimeout)
func WithSendTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.sendTimeout = d
	}
}

// WithDialer replaces the dialer used by Reachable. The probe timeout still
// bounds the dial through its context.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithHTTPClient replaces the HTTP client used by Send.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAckCheck replaces the acknowledgement check applied to response bodies.
//
// Default: NonEmptyAck
func WithAckCheck(ack AckFunc) Option {
	return func(c *Client) {
		c.ack = ack
	}
}

// New creates a client for the given endpoint URL, e.g. "http://localhost:9000".
//
// New never fails. A malformed endpoint is reported by Reachable and Send as a
// *ConfigError, so the condition stays visible wherever the client is used.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:     endpoint,
		probeTimeout: DefaultProbeTimeout,
		sendTimeout:  DefaultSendTimeout,
		ack:          NonEmptyAck,
		dialer:       &net.Dialer{},
	}
	c.target, c.parseErr = parseEndpoint(endpoint)

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: c.probeTimeout, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:        4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: c.probeTimeout,
			},
		}
	}
	return c
}

// Reachable reports whether a TCP connection to the terminal can be opened
// within the probe timeout.
//
// Ordinary network failures (refused, timeout, no route) return false with a
// nil error. Only a malformed endpoint returns an error (*ConfigError).
func (c *Client) Reachable(ctx context.Context) (bool, error) {
	if c.parseErr != nil {
		return false, &ConfigError{Endpoint: c.endpoint, Err: c.parseErr}
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", hostPort(c.target))
	if err != nil {
		return false, nil
	}
	conn.Close()
	return true, nil
}

// Send POSTs payload to the terminal and returns the response body.
//
// Errors:
//   - *UnreachableError: the request could not be completed (dial, timeout, reset)
//   - *TransportError: non-2xx status, unreadable body, or rejected acknowledgement
//   - *ConfigError: malformed endpoint
func (c *Client) Send(ctx context.Context, payload string) (string, error) {
	if c.parseErr != nil {
		return "", &ConfigError{Endpoint: c.endpoint, Err: c.parseErr}
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target.String(), strings.NewReader(payload))
	if err != nil {
		return "", &ConfigError{Endpoint: c.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UnreachableError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransportError{Endpoint: c.endpoint, Reason: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Reason:     "unexpected status",
		}
	}

	if err := c.ack(string(body)); err != nil {
		return "", &TransportError{Endpoint: c.endpoint, Reason: "not acknowledged", Err: err}
	}

	return string(body), nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
