// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils builds the HTTP client used to fetch remote images.
package httputils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrRedirectNotAllowed is returned when a server answers with a redirect.
var ErrRedirectNotAllowed = errors.New("redirect not allowed")

/////////////////////////////////////////
/// RoundTrippers

// LoggingRoundTripper traces each HTTP transaction to a logger.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Logger    *zerolog.Logger
	DumpBody  bool
}

// reduce the content of the lines.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 64, 256

	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			line = line[0:maxChars] + "…"
		}

		lines[i] = fmt.Sprintf("%c %s", prefix, line)
	}

	return lines
}

func dumpLines(dump []byte, prefix rune) string {
	return strings.Join(abbreviate(strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n"), prefix), "\n")
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Logger == nil {
		return t.Transport.RoundTrip(req)
	}

	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	t.Logger.Info().Str("url", req.URL.String()).Msg("HTTP request\n" + dumpLines(dump, '>'))

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.Logger.Info().Err(err).Dur("elapsed", time.Since(start)).Msg("HTTP request failed")

		return nil, err
	}

	dump, err = httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return nil, errors.Join(resp.Body.Close(), fmt.Errorf("tracing HTTP response: %w", err))
	}

	t.Logger.Info().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("HTTP response\n" + dumpLines(dump, '<'))

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to the request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	return t.Transport.RoundTrip(req)
}

////////////////////////////////////////////////////

// ClientOptions configures NewClient.
type ClientOptions struct {
	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Timeout bounds the whole transaction, body included. Zero means none.
	Timeout time.Duration

	// Trace, when not nil, receives a dump of every request and response
	Trace *zerolog.Logger

	// Include bodies in the trace
	TraceBody bool

	// Transport overrides the base transport (tests)
	Transport http.RoundTripper
}

// NewClient returns a client that never follows redirects: a 3xx answer is
// handed back to the caller, which treats anything but 200 as a failure.
func NewClient(options ClientOptions) *http.Client {
	base := options.Transport
	if base == nil {
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          2,
			IdleConnTimeout:       30 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		}
	}

	userAgent := "geosint/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	return &http.Client{
		Timeout: options.Timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &AppendRequestHeadersRoundTripper{
			Headers: map[string]string{
				"User-Agent": userAgent,
				"Accept":     "image/*,*/*;q=0.8",
			},
			Transport: &LoggingRoundTripper{
				Logger:    options.Trace,
				DumpBody:  options.TraceBody,
				Transport: base,
			},
		},
	}
}
