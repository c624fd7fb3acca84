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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/pvarchive/pvarchive/log"
)

func TestHTTPFetcher(t *testing.T) {
	ctx := context.Background()

	t.Run("With a healthy server", func(t *testing.T) {
		var gotArchive atomic.String
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			gotArchive.Store(request.URL.Query().Get("archive"))
			writer.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(writer).Encode([]PVCoverage{
				{PV: "ISRC:QUAD:1:Fld", StartSec: 1000, EndSec: 4000},
				{PV: "ISRC:BEND:2:Fld", StartSec: 2000, EndSec: 3000},
			})
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(log.DiscardLogger)
		rows, err := fetcher.Fetch(ctx, server.URL, "archive_a")
		require.NoError(t, err)
		assert.Equal(t, "archive_a", gotArchive.Load())
		require.Len(t, rows, 2)
		assert.Equal(t, "ISRC:QUAD:1:Fld", rows[0].PV)
		assert.EqualValues(t, 1000, rows[0].StartSec)
		assert.EqualValues(t, 4000, rows[0].EndSec)
	})

	t.Run("With a flaky server", func(t *testing.T) {
		attempts := atomic.NewInt32(0)
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Inc() == 1 {
				http.Error(writer, "busy", http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(writer).Encode([]PVCoverage{{PV: "ISRC:QUAD:1:Fld", StartSec: 1000, EndSec: 4000}})
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(log.DiscardLogger)
		rows, err := fetcher.Fetch(ctx, server.URL, "archive_a")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.EqualValues(t, 2, attempts.Load())
	})

	t.Run("With a persistently failing server", func(t *testing.T) {
		attempts := atomic.NewInt32(0)
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Inc()
			http.Error(writer, "broken", http.StatusInternalServerError)
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(log.DiscardLogger)
		_, err := fetcher.Fetch(ctx, server.URL, "archive_a")
		require.Error(t, err)
		assert.EqualValues(t, fetchMaxAttempts, attempts.Load())
	})

	t.Run("With a rejected archive", func(t *testing.T) {
		attempts := atomic.NewInt32(0)
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Inc()
			http.Error(writer, "no such archive", http.StatusNotFound)
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(log.DiscardLogger)
		_, err := fetcher.Fetch(ctx, server.URL, "archive_zz")
		require.Error(t, err)

		// client-side rejections are not retried
		assert.EqualValues(t, 1, attempts.Load())
	})

	t.Run("With a malformed listing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_, _ = writer.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(log.DiscardLogger)
		_, err := fetcher.Fetch(ctx, server.URL, "archive_a")
		require.Error(t, err)
	})

	t.Run("With an invalid server URL", func(t *testing.T) {
		fetcher := NewHTTPFetcher(log.DiscardLogger)
		_, err := fetcher.Fetch(ctx, "://nowhere", "archive_a")
		require.Error(t, err)
	})
}

func TestListingEndpoint(t *testing.T) {
	endpoint, err := listingEndpoint("http://ca1.example.org/cgi/data", "archive_a")
	require.NoError(t, err)
	assert.Equal(t, "http://ca1.example.org/cgi/data?archive=archive_a", endpoint)

	t.Run("With existing query parameters", func(t *testing.T) {
		endpoint, err := listingEndpoint("http://ca1.example.org/cgi/data?token=abc", "archive_a")
		require.NoError(t, err)
		assert.Contains(t, endpoint, "token=abc")
		assert.Contains(t, endpoint, "archive=archive_a")
	})
}
