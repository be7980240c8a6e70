package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// This file contains unit tests for the status, browse, not found and ops handlers.

// TestStatusHandler ensures api handler can provides its status.
func TestStatusHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	clock := NewMockClocker()
	api := NewAPIHandler(zap.NewNop(), nil, &Statistics{started: clock.Now()}, clock, NewMockUIDHandler("", ""), nil)
	api.Status(w, req, httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	m := make(map[string]interface{})
	err = json.Unmarshal(data, &m)
	assert.NoError(t, err)

	_, ok := m["requestid"]
	assert.True(t, ok)

	v, ok := m["status"]
	assert.True(t, ok)
	assert.Equal(t, "up & running since 0 mins", v)

	v, ok = m["message"]
	assert.True(t, ok)
	assert.Equal(t, "Hello. Book catalog api is available. Enjoy :)", v)
}

// TestRouteNotFound ensures unknown routes get the json not found body.
func TestRouteNotFound(t *testing.T) {
	_, router := newTestRouter(t, newTestBoltStore(t))

	testCases := []struct {
		method string
		target string
		path   string
	}{
		{http.MethodGet, "/api/unknown/route", "GET /api/unknown/route"},
		{http.MethodPost, "/nothing", "POST /nothing"},
		{http.MethodGet, "/a/b/c", "GET /a/b/c"},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := doRequest(t, router, tc.method, tc.target, "", false)
			require.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "application/json; charset=UTF-8", w.Header().Get("Content-Type"))
			var resp NotFoundError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "route does not exist", resp.Message)
			assert.Equal(t, tc.path, resp.Path)
			assert.True(t, strings.HasPrefix(resp.RequestID, RequestIDPrefix+":"))
		})
	}
}

// TestBrowsePages ensures the html views list books and render details or a not found page.
func TestBrowsePages(t *testing.T) {
	_, router := newTestRouter(t, newTestBoltStore(t))
	pk := createTestBook(t, router, "Gophers & Friends", 25)
	createTestBook(t, router, "Rust Basics", 30)

	t.Run("list every book", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/", "", false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=UTF-8", w.Header().Get("Content-Type"))
		body := w.Body.String()
		assert.Contains(t, body, "Gophers &amp; Friends")
		assert.Contains(t, body, "Rust Basics")
		assert.Contains(t, body, `href="/`+pk+`"`)
		assert.Less(t, strings.Index(body, "Rust Basics"), strings.Index(body, "Gophers &amp; Friends"))
	})

	t.Run("filter by query", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/?q=gopher", "", false)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Gophers &amp; Friends")
		assert.NotContains(t, body, "Rust Basics")
	})

	t.Run("no result", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/?q=python", "", false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "No book matches your search.")
	})

	t.Run("detail page", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/"+pk, "", false)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "<h2>Gophers &amp; Friends</h2>")
		assert.Contains(t, body, "25.00")
		assert.Contains(t, body, "desc of Gophers &amp; Friends")
	})

	t.Run("detail of unknown book", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/deadbeef", "", false)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Book not found")
		assert.Contains(t, body, "deadbeef")
	})
}

// TestMaintenanceMode ensures public endpoints answer 503 while maintenance is enabled.
func TestMaintenanceMode(t *testing.T) {
	_, router := newTestRouter(t, newTestBoltStore(t))

	w := doRequest(t, router, http.MethodGet, "/ops/maintenance?status=enable&msg=upgrading", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/books", "", false)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	m := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "upgrading", m["reason"])
	assert.Equal(t, "service currently unavailable.", m["message"])

	w = doRequest(t, router, http.MethodGet, "/ops/stats", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/ops/maintenance?status=disable", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, router, http.MethodGet, "/api/books", "", false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/ops/maintenance?status=toggle", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestOpsEndpoints ensures ops endpoints are gated and expose stats, configs and metrics.
func TestOpsEndpoints(t *testing.T) {
	api, router := newTestRouter(t, newTestBoltStore(t))
	createTestBook(t, router, "Counted", 1)

	t.Run("require api key", func(t *testing.T) {
		for _, target := range []string{"/ops/stats", "/ops/configs", "/ops/metrics", "/ops/maintenance"} {
			w := doRequest(t, router, http.MethodGet, target, "", false)
			assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		}
	})

	t.Run("statistics", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/ops/stats", "", true)
		require.Equal(t, http.StatusOK, w.Code)
		m := make(map[string]interface{})
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
		status, ok := m["status"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(1), status["201"])
		assert.Equal(t, float64(4), status["401"])
	})

	t.Run("configs hide secrets", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/ops/configs", "", true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), testAPIKey)
		assert.Equal(t, testAPIKey, api.config.APIKey)
	})

	t.Run("metrics", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/ops/metrics", "", true)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `bookcatalog_http_requests_total{code="201",method="POST",route="/api/books/create"} 1`)
		assert.Contains(t, body, `bookcatalog_book_operations_total{operation="create",outcome="succeeded"} 1`)
		assert.Contains(t, body, "go_goroutines")
	})
}

// TestCORSPreflight ensures OPTIONS requests get the cors headers including the api key header.
func TestCORSPreflight(t *testing.T) {
	_, router := newTestRouter(t, newTestBoltStore(t))
	w := doRequest(t, router, http.MethodOptions, "/api/books/create", "", false)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), APIKeyHeader)
	assert.Contains(t, w.Header().Get("Allow"), http.MethodPost)
}

// TestWriteErrorResponse ensures a cancelled request only records the 499 status.
func TestWriteErrorResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	cw := NewCustomResponseWriter(rec)
	err := WriteErrorResponse(ctx, cw, NewAPIError("r:1", http.StatusNotFound, "book does not exist", EmptyData))
	assert.Error(t, err)
	assert.Equal(t, 499, cw.Status())
	assert.Equal(t, 0, cw.Bytes())

	rec = httptest.NewRecorder()
	cw = NewCustomResponseWriter(rec)
	err = WriteErrorResponse(req.Context(), cw, NewAPIError("r:1", http.StatusNotFound, "book does not exist", EmptyData))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, cw.Status())
	assert.JSONEq(t, `{"requestid":"r:1","status":404,"message":"book does not exist","data":{}}`, rec.Body.String())
}
