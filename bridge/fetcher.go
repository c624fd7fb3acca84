// MIT License
//
// Copyright (c) 2023-2026 PVArchive Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/pvarchive/pvarchive/log"
)

const (
	// fetchTimeout bounds a single coverage request end to end.
	fetchTimeout = 30 * time.Second
	// fetchMaxAttempts is the number of tries against a flaky server
	// before the fetch is reported as failed.
	fetchMaxAttempts    = 3
	fetchInitialBackoff = 100 * time.Millisecond
	fetchMaxBackoff     = 2 * time.Second
)

// PVCoverage is one row of an archive index listing: a PV the index holds
// data for and the epoch-second range of that data.
type PVCoverage struct {
	PV       string `json:"pv"`
	StartSec int64  `json:"start_sec"`
	EndSec   int64  `json:"end_sec"`
}

// Fetcher retrieves the PV coverage a single archive index reports.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	// Fetch returns the coverage listing of the given index on the given
	// data server.
	Fetch(ctx context.Context, serverURL string, index string) ([]PVCoverage, error)
}

// HTTPFetcher queries legacy data servers over HTTP. The listing for an
// index is expected at <serverURL>?archive=<index> as a JSON array of
// PVCoverage rows.
type HTTPFetcher struct {
	logger log.Logger
	client *http.Client
}

// enforce compilation error
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher with its own bounded-timeout client.
func NewHTTPFetcher(logger log.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch requests the index listing and decodes it. Transport failures and
// server-side errors are retried with exponential backoff; client-side
// rejections are returned immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, serverURL string, index string) ([]PVCoverage, error) {
	endpoint, err := listingEndpoint(serverURL, index)
	if err != nil {
		return nil, err
	}

	var coverage []PVCoverage
	retrier := retry.NewRetrier(fetchMaxAttempts, fetchInitialBackoff, fetchMaxBackoff)
	err = retrier.RunContext(ctx, func(ctx context.Context) error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Stop(err)
		}

		response, err := f.client.Do(request)
		if err != nil {
			f.logger.Warnf("coverage request to %s failed: %v", endpoint, err)
			return err
		}
		defer response.Body.Close()

		switch {
		case response.StatusCode == http.StatusOK:
		case response.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("server %s returned %s for archive %q", serverURL, response.Status, index)
		default:
			return retry.Stop(fmt.Errorf("server %s rejected archive %q listing with %s", serverURL, index, response.Status))
		}

		coverage = coverage[:0]
		return json.NewDecoder(response.Body).Decode(&coverage)
	})
	if err != nil {
		return nil, err
	}
	return coverage, nil
}

// listingEndpoint builds the index listing URL on top of the server URL,
// preserving any query parameters the operator configured on it.
func listingEndpoint(serverURL string, index string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid data server URL %q: %w", serverURL, err)
	}
	query := parsed.Query()
	query.Set("archive", index)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
