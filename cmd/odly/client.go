// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by doctor probes.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// httpClient provides JSON GETs against a local odly server or engine.
type httpClient struct {
	baseURL string
	http    *http.Client
}

// newHTTPClient creates a client for addr, either host:port or a full URL.
func newHTTPClient(addr string) *httpClient {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &httpClient{
		baseURL: base,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// A refused connection is reported as CodeCLIServerDown.
func (c *httpClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return odlyerr.Errorf(odlyerr.CodeCLIServerDown, "nothing listening at %s", c.baseURL)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", c.baseURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
