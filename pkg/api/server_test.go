package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/beanstore/pkg/proc"
	"github.com/ssargent/beanstore/pkg/sample"
	"github.com/ssargent/beanstore/pkg/storage"
	"github.com/ssargent/beanstore/pkg/store"
	"github.com/ssargent/beanstore/pkg/txn"
)

const testKey = "test-key"

type testServer struct {
	*httptest.Server
	api *Server
	reg *prometheus.Registry
}

func setupTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	backend := storage.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })

	opts := store.TableOptions{Registerer: reg}
	profiles := store.NewTable("profiles", sample.ProfileLayout, backend, opts)
	beans := store.NewTable("beans", sample.TestBeanLayout, backend, opts)
	runner := proc.NewRunner(proc.Options{Registerer: reg})

	s := NewServer(profiles, beans, runner, ServerConfig{APIKey: apiKey, MaxRecordSize: 4096}, NewMetrics(reg))
	ts := httptest.NewServer(s.Router(reg))
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, api: s, reg: reg}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, APIResponse) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// doStream sends body without a Content-Length, so it goes out chunked.
func (ts *testServer) doStream(t *testing.T, method, path, body string) (int, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, io.NopCloser(strings.NewReader(body)))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_Health(t *testing.T) {
	ts := setupTestServer(t, testKey)

	code, resp := ts.do(t, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"status": "healthy"}, resp.Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.api.metrics.healthChecksTotal.WithLabelValues(statusSuccess)))
}

func TestServer_RequiresAPIKey(t *testing.T) {
	ts := setupTestServer(t, testKey)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, _ := ts.do(t, "GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, code)

	// Metrics stay open.
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "beanstore_http_requests_total")
}

func TestServer_NoAPIKeyConfigured(t *testing.T) {
	ts := setupTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ProfileLifecycle(t *testing.T) {
	ts := setupTestServer(t, testKey)

	doc := sample.ProfileDoc{
		Name:    "Ada",
		Tags:    []string{"math", "engines"},
		Home:    &sample.AddressDoc{City: "London"},
		Aliases: []string{"countess"},
		Notes:   "first",
	}
	code, resp := ts.do(t, "PUT", "/api/v1/profiles/ada", doc)
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = ts.do(t, "GET", "/api/v1/profiles/ada", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	got := resp.Data.(map[string]any)
	assert.Equal(t, "ada", got["key"])
	profile := got["profile"].(map[string]any)
	assert.Equal(t, "Ada", profile["name"])
	assert.Equal(t, []any{"engines", "math"}, profile["tags"])
	assert.Equal(t, "London", profile["home"].(map[string]any)["city"])

	code, resp = ts.do(t, "POST", "/api/v1/profiles/ada/visit", VisitRequest{Counter: "logins", By: 2})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, map[string]any{"visits": 2.0}, resp.Data)

	code, _ = ts.do(t, "POST", "/api/v1/profiles/ada/visit", nil)
	require.Equal(t, http.StatusOK, code)

	row, err := ts.api.profiles.Load("ada")
	require.NoError(t, err)
	assert.Equal(t, int64(3), row.Record.Visits)
	assert.Equal(t, map[string]int64{"logins": 2}, row.Record.Counters)

	code, resp = ts.do(t, "GET", "/api/v1/profiles", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Data, 1)

	code, _ = ts.do(t, "DELETE", "/api/v1/profiles/ada", nil)
	assert.Equal(t, http.StatusOK, code)

	code, resp = ts.do(t, "GET", "/api/v1/profiles/ada", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)

	code, _ = ts.do(t, "DELETE", "/api/v1/profiles/ada", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(t, "POST", "/api/v1/profiles/ada/visit", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_CreateProfile(t *testing.T) {
	ts := setupTestServer(t, testKey)

	code, resp := ts.do(t, "POST", "/api/v1/profiles", sample.ProfileDoc{Name: "Grace"})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	key := resp.Data.(map[string]any)["key"].(string)
	assert.Len(t, key, 27)

	row, err := ts.api.profiles.Load(key)
	require.NoError(t, err)
	assert.Equal(t, "Grace", row.Record.Name)
}

func TestServer_BadRequests(t *testing.T) {
	ts := setupTestServer(t, testKey)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", "PUT", "/api/v1/profiles/x", "{", http.StatusBadRequest},
		{"wrong field type", "PUT", "/api/v1/profiles/x", `{"age":"old"}`, http.StatusBadRequest},
		{"body too large", "PUT", "/api/v1/profiles/x", `{"name":"` + strings.Repeat("a", 5000) + `"}`, http.StatusBadRequest},
		{"bad limit", "GET", "/api/v1/profiles?limit=-1", "", http.StatusBadRequest},
		{"decode without input", "POST", "/api/v1/decode", `{}`, http.StatusBadRequest},
		{"decode bad hex", "POST", "/api/v1/decode", `{"hex":"zz"}`, http.StatusBadRequest},
		{"decode truncated", "POST", "/api/v1/decode", `{"hex":"04"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, body)
			require.NoError(t, err)
			req.Header.Set("X-API-Key", testKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServer_Decode(t *testing.T) {
	ts := setupTestServer(t, testKey)
	data := sample.TestBeanLayout.Encode(&sample.TestBean{Value1: 5, Value2: -2})

	code, resp := ts.do(t, "POST", "/api/v1/decode", DecodeRequest{Hex: hex.EncodeToString(data)})
	require.Equal(t, http.StatusOK, code, resp.Error)
	got := resp.Data.(map[string]any)
	assert.Equal(t, map[string]any{"1": 5.0, "2": -2.0}, got["fields"])
	assert.Equal(t, float64(len(data)), got["consumed"])

	// Raw bytes work too.
	req, err := http.NewRequest("POST", ts.URL+"/api/v1/decode", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusOK, raw.StatusCode)

	assert.Equal(t, 2.0, testutil.ToFloat64(ts.api.metrics.decodesTotal.WithLabelValues(statusSuccess)))
}

func TestServer_ProfileBodyDecodes(t *testing.T) {
	ts := setupTestServer(t, testKey)
	code, _ := ts.do(t, "PUT", "/api/v1/profiles/n", sample.ProfileDoc{Notes: "x"})
	require.Equal(t, http.StatusOK, code)

	req, err := http.NewRequest("GET", ts.URL+"/api/v1/profiles/n/body", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte{0xfd, 0x07, 0x01, 'x', 0x00}, body)
}

func TestServer_BeansAndStats(t *testing.T) {
	ts := setupTestServer(t, testKey)

	v1 := int32(9)
	code, resp := ts.do(t, "PUT", "/api/v1/beans/b1", map[string]any{"value1": v1})
	require.Equal(t, http.StatusOK, code, resp.Error)
	code, resp = ts.do(t, "PUT", "/api/v1/beans/b1", map[string]any{"value2": 100})
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = ts.do(t, "GET", "/api/v1/beans/b1", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, map[string]any{"value1": 9.0, "value2": 100.0}, resp.Data)

	code, resp = ts.do(t, "GET", "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	tables := resp.Data.(map[string]any)["tables"].([]any)
	require.Len(t, tables, 2)
	assert.Equal(t, "beans", tables[1].(map[string]any)["table"])
	assert.Equal(t, 1.0, tables[1].(map[string]any)["records"])
}

func TestServer_VisitStreamedBody(t *testing.T) {
	ts := setupTestServer(t, testKey)
	code, resp := ts.do(t, "PUT", "/api/v1/profiles/ada", sample.ProfileDoc{Name: "Ada"})
	require.Equal(t, http.StatusOK, code, resp.Error)

	tests := []struct {
		name   string
		body   string
		status int
		visits float64
	}{
		{"json body", `{"counter":"logins","by":3}`, http.StatusOK, 3},
		{"empty body", "", http.StatusOK, 4},
		{"broken body", "{", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := ts.doStream(t, "POST", "/api/v1/profiles/ada/visit", tt.body)
			require.Equal(t, tt.status, code, resp.Error)
			if tt.status == http.StatusOK {
				assert.Equal(t, map[string]any{"visits": tt.visits}, resp.Data)
			}
		})
	}

	row, err := ts.api.profiles.Load("ada")
	require.NoError(t, err)
	assert.Equal(t, int64(3), row.Record.Counters["logins"])
}

func TestServer_ReadWaitsForKeyLock(t *testing.T) {
	ts := setupTestServer(t, testKey)
	code, resp := ts.do(t, "PUT", "/api/v1/profiles/ada", sample.ProfileDoc{Name: "Ada"})
	require.Equal(t, http.StatusOK, code, resp.Error)

	unlock := ts.api.runner.Locks().Lock(ts.api.profiles.LockID("ada"))
	done := make(chan int, 1)
	go func() {
		code, _ := ts.do(t, "GET", "/api/v1/profiles/ada", nil)
		done <- code
	}()

	select {
	case <-done:
		t.Fatal("read completed while the key was locked")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("read did not complete after unlock")
	}
}

func TestServer_StoppedRunnerRefusesWrites(t *testing.T) {
	ts := setupTestServer(t, testKey)

	err := ts.api.runner.Run(context.Background(), "broken", func(ctx context.Context, tx *txn.Txn) error {
		return txn.ErrCorruptJournal
	})
	require.ErrorIs(t, err, txn.ErrCorruptJournal)

	code, resp := ts.do(t, "PUT", "/api/v1/profiles/ada", sample.ProfileDoc{Name: "Ada"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "runner stopped")
}
